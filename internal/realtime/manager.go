package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/monitoring"
)

// attempt is one in-flight dial shared by every concurrent Connect caller
type attempt struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

type subscription struct {
	id uint64
	fn Handler
}

// Manager owns the single realtime connection of the process
type Manager struct {
	cfg     Config
	dialer  Dialer
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	url      string
	conn     Conn
	state    State
	pending  *attempt
	attempts int
	retry    *time.Timer
	closed   bool

	writeMu sync.Mutex

	subsMu  sync.RWMutex
	subs    map[EventKind][]subscription
	nextSub uint64
}

// NewManager creates a disconnected manager. Call Connect to open the
// transport.
func NewManager(cfg Config, logger *logging.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:    cfg,
		dialer: NewWSDialer(cfg),
		logger: logger.Named("realtime"),
		state:  StateDisconnected,
		subs:   make(map[EventKind][]subscription),
	}
}

// WithDialer replaces the transport dialer
func (m *Manager) WithDialer(d Dialer) *Manager {
	m.dialer = d
	return m
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnect attempts since the last
// successful connection
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// URL returns the resolved endpoint, empty before the first Connect
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Connect opens the transport, or joins the attempt already in flight.
// ctx bounds only this caller's wait; the shared attempt keeps running
// and its failure enters the reconnect policy.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.url == "" {
		url, err := m.cfg.ResolveURL()
		if err != nil {
			m.mu.Unlock()
			m.logger.Error("WebSocket connection error", zap.Error(err))
			return err
		}
		m.url = url
	}
	m.closed = false
	a := m.pending
	if a == nil {
		a = m.startAttemptLocked()
	}
	m.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) startAttemptLocked() *attempt {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	a := &attempt{done: make(chan struct{}), cancel: cancel}
	m.pending = a
	m.state = StateConnecting

	go m.dial(ctx, a, m.url)
	return a
}

func (m *Manager) dial(ctx context.Context, a *attempt, url string) {
	defer a.cancel()

	conn, err := m.dialer.Dial(ctx, url)

	m.mu.Lock()
	if m.pending != a {
		// Superseded by Disconnect
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		a.err = ErrDisconnected
		close(a.done)
		return
	}
	m.pending = nil

	if err != nil {
		m.state = StateDisconnected
		a.err = fmt.Errorf("realtime: connect %s: %w", url, err)
		m.logger.Error("WebSocket connection error", zap.String("url", url), zap.Error(err))
		exhausted := m.scheduleReconnectLocked()
		m.mu.Unlock()

		close(a.done)
		if exhausted {
			m.emitConnectionLost()
		}
		return
	}

	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	m.logger.Info("WebSocket connected", zap.String("url", url))
	close(a.done)

	go m.readLoop(conn)
}

// scheduleReconnectLocked arms the next retry with linear backoff. It
// returns true when the budget is exhausted and the caller must emit the
// connection lost event after releasing the lock.
func (m *Manager) scheduleReconnectLocked() bool {
	if m.closed {
		return false
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("Max reconnection attempts reached",
			zap.Int("attempts", m.attempts),
			zap.Int("max", m.cfg.MaxReconnectAttempts),
		)
		m.metrics.IncReconnectExhausted()
		return true
	}

	m.attempts++
	delay := m.cfg.ReconnectInterval * time.Duration(m.attempts)
	m.logger.Info("Attempting to reconnect",
		zap.Int("attempt", m.attempts),
		zap.Int("max", m.cfg.MaxReconnectAttempts),
		zap.Duration("delay", delay),
	)
	m.metrics.IncReconnects()
	m.retry = time.AfterFunc(delay, m.reconnect)
	return false
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retry = nil
	if m.closed || m.state == StateConnected || m.pending != nil {
		return
	}
	m.startAttemptLocked()
}

func (m *Manager) emitConnectionLost() {
	payload, err := sonic.Marshal(ErrorPayload{Message: ConnectionLostMessage})
	if err != nil {
		m.logger.Error("Failed to encode connection lost payload", zap.Error(err))
		return
	}
	m.emit(EventError, payload)
}

func (m *Manager) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		m.dispatch(data)
	}
}

func (m *Manager) handleClose(conn Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		// Closed by Disconnect, already handled
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	_ = conn.Close()

	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("WebSocket disconnected", zap.Error(cause))
	} else {
		m.logger.Warn("WebSocket disconnected", zap.Error(cause))
	}
	exhausted := m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.metrics.SetConnected(false)
	if exhausted {
		m.emitConnectionLost()
	}
}

func (m *Manager) dispatch(data []byte) {
	var frame Frame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		m.logger.Error("Error parsing WebSocket message", zap.Error(err), zap.Int("bytes", len(data)))
		m.metrics.RecordDroppedFrame("invalid_json")
		return
	}
	if !frame.Type.Valid() {
		m.logger.Debug("Dropping frame with unknown type", zap.String("type", string(frame.Type)))
		m.metrics.RecordDroppedFrame("unknown_type")
		return
	}

	m.metrics.RecordFrame("in", string(frame.Type))
	start := time.Now()
	m.emit(frame.Type, frame.Payload)
	m.metrics.RecordDispatch(time.Since(start))
}

// emit runs the handlers registered at call time, in subscription order
func (m *Manager) emit(kind EventKind, payload json.RawMessage) {
	m.subsMu.RLock()
	handlers := make([]subscription, len(m.subs[kind]))
	copy(handlers, m.subs[kind])
	m.subsMu.RUnlock()

	for _, sub := range handlers {
		m.invoke(kind, sub, payload)
	}
}

func (m *Manager) invoke(kind EventKind, sub subscription, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Event handler panicked",
				zap.String("type", string(kind)),
				zap.Uint64("subscription", sub.id),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(payload)
}

// On registers fn for kind and returns a function that removes exactly
// that registration. The returned function is safe to call more than once
// and from inside a handler.
func (m *Manager) On(kind EventKind, fn Handler) func() {
	m.subsMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs[kind] = append(m.subs[kind], subscription{id: id, fn: fn})
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(kind, id) })
	}
}

func (m *Manager) unsubscribe(kind EventKind, id uint64) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subs := m.subs[kind]
	for i, s := range subs {
		if s.id == id {
			// Copy so an in-flight emit keeps its snapshot intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(m.subs, kind)
			} else {
				m.subs[kind] = next
			}
			return
		}
	}
}

// Subscribers returns the number of handlers registered for kind
func (m *Manager) Subscribers(kind EventKind) int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subs[kind])
}

// Send writes {type, payload} to the transport. It reports false, and
// logs the cause, when not connected or when encoding or writing fails.
func (m *Manager) Send(kind EventKind, payload any) bool {
	if !kind.Valid() {
		m.logger.Error("Refusing to send frame with unknown type", zap.String("type", string(kind)))
		return false
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		m.logger.Error("WebSocket is not connected", zap.String("type", string(kind)))
		return false
	}

	raw, err := sonic.Marshal(payload)
	if err != nil {
		m.logger.Error("Error sending WebSocket message", zap.String("type", string(kind)), zap.Error(err))
		return false
	}
	data, err := sonic.Marshal(Frame{Type: kind, Payload: raw})
	if err != nil {
		m.logger.Error("Error sending WebSocket message", zap.String("type", string(kind)), zap.Error(err))
		return false
	}

	m.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Error("Error sending WebSocket message", zap.String("type", string(kind)), zap.Error(err))
		return false
	}

	m.metrics.RecordFrame("out", string(kind))
	return true
}

// Disconnect closes the transport, abandons any in-flight attempt and
// cancels a scheduled retry. It never schedules a reconnect and is safe to
// call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if a := m.pending; a != nil {
		a.cancel()
		m.pending = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn == nil {
		return
	}
	m.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	m.writeMu.Unlock()
	_ = conn.Close()

	m.metrics.SetConnected(false)
	m.logger.Info("WebSocket disconnected")
}
