// Package dispatch fans notifications out to subscribers.
package dispatch

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"rda_bot/internal/filter"
	"rda_bot/internal/message"
	"rda_bot/internal/model"
)

// DefaultWorkers is the number of parallel deliveries per event.
const DefaultWorkers = 8

// Store is the subscriber data a Dispatcher reads.
type Store interface {
	filter.Reader
	ListSubscribers(ctx context.Context, kind model.SubscriptionKind) ([]int64, error)
}

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config tunes a Dispatcher.
type Config struct {
	DefaultTemplate string
	MaxLen          int
	Workers         int
}

// Dispatcher selects the recipients of an event and delivers it to them.
// Deliveries to different chats run in parallel; deliveries to one chat are
// serialised so chunk sequences never interleave.
type Dispatcher struct {
	store  Store
	sender Sender
	cfg    Config
	log    *slog.Logger

	mu       sync.Mutex
	locks    map[int64]*sync.Mutex
	reported map[int64]string
}

// New creates a Dispatcher. Zero config fields fall back to defaults.
func New(store Store, sender Sender, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = message.DefaultTemplate
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = message.DefaultMaxLen
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		cfg:      cfg,
		log:      log,
		locks:    make(map[int64]*sync.Mutex),
		reported: make(map[int64]string),
	}
}

// DispatchSpot delivers s to every spot subscriber whose filter accepts it,
// rendered with the subscriber's template. It returns after all deliveries
// have finished and reports how many chats received the spot.
func (d *Dispatcher) DispatchSpot(ctx context.Context, s model.Spot) int {
	ids, err := d.store.ListSubscribers(ctx, model.KindSpots)
	if err != nil {
		d.log.Error("list spot subscribers", "error", err)
		return 0
	}
	return d.fanOut(ids, func(chatID int64) bool {
		return d.spotTo(ctx, chatID, s)
	})
}

// DispatchAnnouncements delivers text to every announcement subscriber and
// reports how many chats received it.
func (d *Dispatcher) DispatchAnnouncements(ctx context.Context, text string) int {
	ids, err := d.store.ListSubscribers(ctx, model.KindAnnouncements)
	if err != nil {
		d.log.Error("list announcement subscribers", "error", err)
		return 0
	}
	return d.fanOut(ids, func(chatID int64) bool {
		return d.Deliver(ctx, chatID, text) == nil
	})
}

// Deliver chunks text and sends the chunks to one chat in order, stopping at
// the first failed chunk.
func (d *Dispatcher) Deliver(ctx context.Context, chatID int64, text string) error {
	lock := d.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	for _, chunk := range message.Chunk(text, d.cfg.MaxLen) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := d.sender.Send(ctx, chatID, chunk); err != nil {
			d.log.Warn("deliver message", "chat_id", chatID, "error", err)
			return fmt.Errorf("deliver to %d: %w", chatID, err)
		}
	}
	return nil
}

func (d *Dispatcher) fanOut(ids []int64, deliver func(chatID int64) bool) int {
	var (
		g    errgroup.Group
		sent atomic.Int32
	)
	g.SetLimit(d.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			if deliver(id) {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load())
}

func (d *Dispatcher) spotTo(ctx context.Context, chatID int64, s model.Spot) bool {
	f, err := filter.Load(ctx, d.store, chatID)
	if err != nil {
		d.log.Error("load filter", "chat_id", chatID, "error", err)
		return false
	}
	if !filter.Allowed(f, s) {
		return false
	}

	tmpl := f.Template
	if tmpl == "" {
		tmpl = d.cfg.DefaultTemplate
	}
	text, err := message.Render(tmpl, s)
	if err != nil {
		d.log.Warn("render spot", "chat_id", chatID, "error", err)
		d.reportTemplate(ctx, chatID, tmpl, err)
		return false
	}
	return d.Deliver(ctx, chatID, text) == nil
}

// reportTemplate tells the subscriber that its template is broken, once per
// template value.
func (d *Dispatcher) reportTemplate(ctx context.Context, chatID int64, tmpl string, err error) {
	d.mu.Lock()
	if last, ok := d.reported[chatID]; ok && last == tmpl {
		d.mu.Unlock()
		return
	}
	d.reported[chatID] = tmpl
	d.mu.Unlock()

	text := fmt.Sprintf("⚠️ Не удалось применить ваш шаблон: %s\nИсправьте его через /set_template или сбросьте: /set_template reset",
		html.EscapeString(err.Error()))
	_ = d.Deliver(ctx, chatID, text)
}

func (d *Dispatcher) lockFor(chatID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[chatID] = l
	}
	return l
}
