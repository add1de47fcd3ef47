// Package stream keeps a Socket.IO connection to the RDA cluster and feeds
// its events to a handler.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Engine.IO packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types carried in Engine.IO messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var (
	// ErrClosed is returned when the server ends the session.
	ErrClosed = errors.New("stream closed by server")
	// ErrRejected is returned when the server refuses the namespace connect.
	ErrRejected = errors.New("stream connect rejected")
)

// EventHandler receives decoded events, one at a time.
type EventHandler interface {
	HandleEvent(ctx context.Context, event, payload string)
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// Client speaks Engine.IO v4 / Socket.IO v5 over the WebSocket transport only.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger
}

// NewClient creates a client for the given endpoint. http(s) and ws(s) URLs
// are accepted; an empty path defaults to /socket.io/.
func NewClient(endpoint string, log *slog.Logger) (*Client, error) {
	u, err := socketURL(endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{
		url: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 20 * time.Second,
		},
		log: log,
	}, nil
}

func socketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Session connects, then delivers events to h until the connection fails or
// ctx is cancelled. onConnect runs once the namespace is joined. The returned
// error is never nil.
func (c *Client) Session(ctx context.Context, h EventHandler, onConnect func()) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	open, err := readOpen(conn)
	if err != nil {
		return err
	}
	timeout := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	c.log.Debug("stream handshake", "sid", open.SID, "timeout", timeout)

	if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case eioClose:
			return ErrClosed
		case eioMessage:
			if err := c.handlePacket(ctx, data[1:], h, onConnect); err != nil {
				return err
			}
		case eioNoop, eioPong:
		default:
			c.log.Debug("unknown engine.io packet", "packet", string(data))
		}
	}
}

func readOpen(conn *websocket.Conn) (openPacket, error) {
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return openPacket{}, fmt.Errorf("read open packet: %w", err)
	}
	if len(data) == 0 || data[0] != eioOpen {
		return openPacket{}, fmt.Errorf("unexpected first packet %q", truncate(string(data), 64))
	}
	var open openPacket
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return openPacket{}, fmt.Errorf("decode open packet: %w", err)
	}
	return open, nil
}

func (c *Client) handlePacket(ctx context.Context, pkt []byte, h EventHandler, onConnect func()) error {
	if len(pkt) == 0 {
		return nil
	}
	switch pkt[0] {
	case sioConnect:
		if onConnect != nil {
			onConnect()
		}
	case sioDisconnect:
		return ErrClosed
	case sioConnectError:
		return fmt.Errorf("%w: %s", ErrRejected, truncate(string(pkt[1:]), 200))
	case sioEvent:
		event, payload, err := decodeEvent(pkt[1:])
		if err != nil {
			c.log.Warn("drop stream event", "packet", truncate(string(pkt), 200), "error", err)
			return nil
		}
		h.HandleEvent(ctx, event, payload)
	}
	return nil
}

// decodeEvent parses `[/nsp,][ackID]["event", arg, ...]` and returns the event
// name and its first argument. A string argument is returned unquoted, any
// other JSON value verbatim.
func decodeEvent(body []byte) (event, payload string, err error) {
	s := string(body)
	if strings.HasPrefix(s, "/") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return "", "", fmt.Errorf("namespace without payload")
		}
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, "0123456789")

	var args []jsoniter.RawMessage
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return "", "", fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", "", fmt.Errorf("event without name")
	}
	if err := json.Unmarshal(args[0], &event); err != nil {
		return "", "", fmt.Errorf("decode event name: %w", err)
	}
	if len(args) > 1 {
		if err := json.Unmarshal(args[1], &payload); err != nil {
			payload = string(args[1])
		}
	}
	return event, payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
