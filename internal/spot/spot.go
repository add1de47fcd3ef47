// Package spot decodes live cluster spots and gates them through the dedup
// store before fan-out.
package spot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rda_bot/internal/dedup"
	"rda_bot/internal/model"
)

// EventNewSpot is the stream event carrying a spot payload.
const EventNewSpot = "new_spot"

// Field positions in the pipe-delimited payload.
const (
	fieldCallsign = 0
	fieldTime     = 1
	fieldFreq     = 2
	fieldMode     = 3
	fieldRDA      = 5
	fieldComment  = 7
	fieldSpotter  = 8
	fieldCount    = 9
)

var (
	// ErrMalformed is returned for payloads that cannot be decoded.
	ErrMalformed = errors.New("malformed spot")
	// ErrNoRDA is returned for spots without a known RDA zone.
	ErrNoRDA = errors.New("spot has no rda")
)

// Parse decodes a payload of the form
// callsign|time|freq|mode|_|rda|_|comment|spotter.
func Parse(payload string) (model.Spot, error) {
	p := strings.Split(payload, "|")
	if len(p) < fieldCount {
		return model.Spot{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, len(p), fieldCount)
	}
	raw := strings.TrimSpace(p[fieldFreq])
	freq, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.Spot{}, fmt.Errorf("%w: frequency %q", ErrMalformed, raw)
	}
	rda := strings.TrimSpace(p[fieldRDA])
	if rda == "" || rda == "?" {
		return model.Spot{}, ErrNoRDA
	}
	return model.Spot{
		Callsign: strings.TrimSpace(p[fieldCallsign]),
		Time:     strings.TrimSpace(p[fieldTime]),
		Freq:     freq,
		RawFreq:  raw,
		Mode:     strings.ToUpper(strings.TrimSpace(p[fieldMode])),
		RDA:      rda,
		Comment:  p[fieldComment],
		Spotter:  strings.TrimSpace(p[fieldSpotter]),
	}, nil
}

// Key returns the dedup key of a spot. The comment is not part of it.
func Key(s model.Spot) string {
	return dedup.Key(s.Callsign, s.Time, s.RawFreq)
}

// Dispatcher delivers an accepted spot to subscribers.
type Dispatcher interface {
	DispatchSpot(ctx context.Context, s model.Spot) int
}

// Handler turns stream events into dispatched spots. One Handler lives for
// the whole process and is attached to every stream connection.
type Handler struct {
	seen       dedup.Store
	dispatcher Dispatcher
	log        *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(seen dedup.Store, dispatcher Dispatcher, log *slog.Logger) *Handler {
	return &Handler{seen: seen, dispatcher: dispatcher, log: log}
}

// HandleEvent processes one stream event. It never fails: bad payloads and
// duplicates are dropped.
func (h *Handler) HandleEvent(ctx context.Context, event, payload string) {
	if event != EventNewSpot {
		h.log.Debug("ignore stream event", "event", event)
		return
	}

	s, err := Parse(payload)
	if errors.Is(err, ErrNoRDA) {
		return
	}
	if err != nil {
		h.log.Debug("drop spot", "payload", payload, "error", err)
		return
	}

	isNew, err := h.seen.IsNew(ctx, Key(s))
	if err != nil {
		h.log.Error("check seen spot", "callsign", s.Callsign, "error", err)
		return
	}
	if !isNew {
		h.log.Debug("duplicate spot", "callsign", s.Callsign, "time", s.Time)
		return
	}

	n := h.dispatcher.DispatchSpot(ctx, s)
	h.log.Debug("spot dispatched", "callsign", s.Callsign, "rda", s.RDA, "recipients", n)
}
