package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the connection state of a Listener.
type State int32

// Listener states.
const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Listener keeps a stream session alive, reconnecting after a fixed delay
// whenever it drops. It stops only when its context is cancelled.
type Listener struct {
	client  *Client
	handler EventHandler
	delay   time.Duration
	log     *slog.Logger

	state    atomic.Int32
	sessions atomic.Int64
}

// NewListener creates a Listener that reattaches the same handler on every
// connection.
func NewListener(client *Client, handler EventHandler, delay time.Duration, log *slog.Logger) *Listener {
	return &Listener{client: client, handler: handler, delay: delay, log: log}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.client.Session(ctx, l.handler, l.connected)
		l.state.Store(int32(Disconnected))
		if ctx.Err() != nil {
			return
		}
		l.log.Warn("stream disconnected", "error", err, "retry_in", l.delay)

		t := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (l *Listener) connected() {
	l.state.Store(int32(Connected))
	n := l.sessions.Add(1)
	l.log.Info("stream connected", "session", n)
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Sessions returns how many times the listener has connected.
func (l *Listener) Sessions() int64 {
	return l.sessions.Load()
}
