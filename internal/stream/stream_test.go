package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

type event struct {
	Name    string
	Payload string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) HandleEvent(_ context.Context, name, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{Name: name, Payload: payload})
}

func (r *recorder) got() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

// fakeServer emulates a Socket.IO server that sends the given frames on each
// connection and then drops it. With hold set, it drops the connection only
// once hold is closed.
type fakeServer struct {
	frames   [][]string
	hold     chan struct{}
	conns    atomic.Int32
	pongs    atomic.Int32
	upgrader websocket.Upgrader
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	n := int(s.conns.Add(1)) - 1

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	_, msg, err := conn.ReadMessage()
	if err != nil || string(msg) != "40" {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"def"}`))

	_ = conn.WriteMessage(websocket.TextMessage, []byte("2"))
	_, msg, err = conn.ReadMessage()
	if err == nil && string(msg) == "3" {
		s.pongs.Add(1)
	}

	if n < len(s.frames) {
		for _, f := range s.frames[n] {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
	}
	if s.hold != nil {
		<-s.hold
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte("1"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestListenerReceivesAndReconnects(t *testing.T) {
	srv := &fakeServer{
		frames: [][]string{
			{`42["new_spot","R1ABC|12:34|14074.0|DIGI||AD-01||cq|UA1XYZ"]`, `42garbage`},
			{`42/cluster,7["new_spot","R2ABC|12:35|7010|CW||BR-10||tu|UA2XYZ"]`, `42["stats",{"n":1}]`},
		},
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client, err := NewClient(ts.URL, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	rec := &recorder{}
	l := NewListener(client, rec, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(rec.got()) >= 3 })
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}

	want := []event{
		{Name: "new_spot", Payload: "R1ABC|12:34|14074.0|DIGI||AD-01||cq|UA1XYZ"},
		{Name: "new_spot", Payload: "R2ABC|12:35|7010|CW||BR-10||tu|UA2XYZ"},
		{Name: "stats", Payload: `{"n":1}`},
	}
	if diff := cmp.Diff(want, rec.got()[:3]); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if l.Sessions() < 2 {
		t.Errorf("sessions = %d, want at least 2", l.Sessions())
	}
	if srv.pongs.Load() < 2 {
		t.Errorf("pongs = %d, want at least 2", srv.pongs.Load())
	}
	if l.State() != Disconnected {
		t.Errorf("state after stop = %v, want disconnected", l.State())
	}
}

func TestListenerSkipsMalformedFrames(t *testing.T) {
	hold := make(chan struct{})
	release := sync.OnceFunc(func() { close(hold) })
	srv := &fakeServer{
		frames: [][]string{{
			`42garbage`,
			`42[]`,
			`42["new_spot","R1ABC|12:34|14074.0|DIGI||AD-01||cq|UA1XYZ"]`,
			`42[42`,
			`42["new_spot","R2ABC|12:35|7010|CW||BR-10||tu|UA2XYZ"]`,
		}},
		hold: hold,
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer release()

	client, err := NewClient(ts.URL, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	rec := &recorder{}
	l := NewListener(client, rec, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(rec.got()) >= 2 })

	// The server still holds the first connection open.
	if got := l.Sessions(); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
	if l.State() != Connected {
		t.Errorf("state = %v, want connected", l.State())
	}
	want := []event{
		{Name: "new_spot", Payload: "R1ABC|12:34|14074.0|DIGI||AD-01||cq|UA1XYZ"},
		{Name: "new_spot", Payload: "R2ABC|12:35|7010|CW||BR-10||tu|UA2XYZ"},
	}
	if diff := cmp.Diff(want, rec.got()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	release()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestListenerRetriesUnreachableEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := NewClient(url, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	l := NewListener(client, &recorder{}, 5*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	l.Run(ctx)

	if l.Sessions() != 0 {
		t.Errorf("sessions = %d, want 0", l.Sessions())
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://rdaward.ru", want: "wss://rdaward.ru/socket.io/?EIO=4&transport=websocket"},
		{in: "http://localhost:5000/", want: "ws://localhost:5000/socket.io/?EIO=4&transport=websocket"},
		{in: "wss://example.com/custom/", want: "wss://example.com/custom/?EIO=4&transport=websocket"},
		{in: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := socketURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("socketURL mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		in          string
		wantEvent   string
		wantPayload string
		wantErr     bool
	}{
		{in: `["new_spot","a|b"]`, wantEvent: "new_spot", wantPayload: "a|b"},
		{in: `12["ping"]`, wantEvent: "ping"},
		{in: `/admin,["x",42]`, wantEvent: "x", wantPayload: "42"},
		{in: `[]`, wantErr: true},
		{in: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.in, "/", "_"), func(t *testing.T) {
			ev, payload, err := decodeEvent([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.wantEvent, ev); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantPayload, payload); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
