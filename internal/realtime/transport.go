package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a WebSocket connection the manager uses. One
// goroutine reads while another writes; Close may be called from any.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport to url
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// WSDialer dials with gorilla/websocket
type WSDialer struct {
	Dialer    *websocket.Dialer
	Header    http.Header
	ReadLimit int64
}

// NewWSDialer returns a dialer with the given handshake timeout and read limit
func NewWSDialer(cfg Config) *WSDialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = cfg.HandshakeTimeout

	header := http.Header{}
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}

	return &WSDialer{
		Dialer:    &d,
		Header:    header,
		ReadLimit: cfg.ReadLimit,
	}
}

// Dial implements Dialer
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return conn, nil
}
