package scheduler

import (
	"context"
	"log/slog"
	"time"

	"rda_bot/internal/announce"
	"rda_bot/internal/model"
)

// DefaultInterval is the pause between two announcement checks.
const DefaultInterval = 5 * time.Minute

// Fetcher returns the announcements currently published.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Announcement, error)
}

// Broadcaster delivers one text to every announcement subscriber.
type Broadcaster interface {
	DispatchAnnouncements(ctx context.Context, text string) int
}

// Scheduler periodically polls the announcement page and broadcasts the
// records that were not emitted before.
type Scheduler struct {
	fetcher Fetcher
	differ  *announce.Differ
	out     Broadcaster
	log     *slog.Logger
	tick    time.Duration

	last string
}

// New creates a Scheduler. The differ may be shared with other readers of
// the announcement list so that a record is announced only once.
func New(f Fetcher, differ *announce.Differ, out Broadcaster, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher: f,
		differ:  differ,
		out:     out,
		log:     log,
		tick:    DefaultInterval,
	}
}

// SetTickInterval overrides the default check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Run checks immediately and then again tick after the previous check has
// finished, blocking until ctx is cancelled. Checks never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.check(ctx)
			timer.Reset(s.tick)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	records, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.log.Warn("fetch announcements", "error", err)
		return
	}

	_, fresh := s.differ.Diff(records)
	if len(fresh) == 0 {
		s.log.Debug("no new announcements", "total", len(records))
		return
	}

	text := announce.NewHeader + announce.Format(fresh, announce.DefaultWrap)
	if text == s.last {
		s.log.Debug("announcement text unchanged, skipping")
		return
	}
	s.last = text

	n := s.out.DispatchAnnouncements(ctx, text)
	s.log.Info("sent announcements", "new", len(fresh), "recipients", n)
}
