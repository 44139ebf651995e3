package realtime

import (
	"errors"
	"time"
)

// State of the connection
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("realtime: not connected")
	ErrDisconnected = errors.New("realtime: disconnected during connect")
	ErrNoEndpoint   = errors.New("realtime: no endpoint configured")
)

const (
	DefaultPath                 = "/ws"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectInterval    = 3 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultReadLimit            = 1 << 20
)

// Config configures a Manager. URL wins over Origin/Host/Path.
type Config struct {
	URL                  string
	Origin               string
	Host                 string
	Path                 string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	HandshakeTimeout     time.Duration
	ReadLimit            int64
}

// DefaultConfig returns the reconnect policy of the web client
func DefaultConfig() Config {
	return Config{
		Path:                 DefaultPath,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectInterval:    DefaultReconnectInterval,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		ReadLimit:            DefaultReadLimit,
	}
}

// ResolveURL returns URL or the endpoint derived from Origin and Host
func (c Config) ResolveURL() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Origin == "" && c.Host == "" {
		return "", ErrNoEndpoint
	}
	return Endpoint(c.Origin, c.Host, c.Path)
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	return c
}
