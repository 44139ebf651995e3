// Package notify keeps the user facing notifications of the chat client.
//
// Board is the in-memory toast list a UI polls through the control API. It
// implements txn.Notifier.
package notify

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/shared/id"
)

// Level of a toast
type Level string

const (
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// SuccessDuration is how long success toasts stay visible
const SuccessDuration = 4 * time.Second

// Toast is one notification. A zero Duration never expires.
type Toast struct {
	ID          string        `json:"id"`
	Level       Level         `json:"level"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Expired reports whether t is no longer visible at now
func (t Toast) Expired(now time.Time) bool {
	return t.Duration > 0 && now.After(t.UpdatedAt.Add(t.Duration))
}

// Board stores toasts in memory
type Board struct {
	mu     sync.Mutex
	toasts map[string]*Toast
	now    func() time.Time
	logger *logging.Logger
}

// NewBoard creates an empty board
func NewBoard(logger *logging.Logger) *Board {
	return &Board{
		toasts: make(map[string]*Toast),
		now:    time.Now,
		logger: logger.Named("notify"),
	}
}

// Loading shows a toast that stays until replaced or dismissed
func (b *Board) Loading(message string) string {
	return b.put("", LevelLoading, message, "", 0)
}

// Success replaces toast id, or adds a new one when id is empty or gone
func (b *Board) Success(id, message string) {
	b.put(id, LevelSuccess, message, "", SuccessDuration)
}

// Error replaces toast id, or adds a new one when id is empty or gone
func (b *Board) Error(id, message, description string, duration time.Duration) {
	b.put(id, LevelError, message, description, duration)
}

// Dismiss removes toast id
func (b *Board) Dismiss(toastID string) {
	if toastID == "" {
		return
	}
	b.mu.Lock()
	_, ok := b.toasts[toastID]
	delete(b.toasts, toastID)
	b.mu.Unlock()

	if ok {
		b.logger.Debug("Toast dismissed", zap.String("toast", toastID))
	}
}

func (b *Board) put(toastID string, level Level, title, description string, duration time.Duration) string {
	now := b.now()

	b.mu.Lock()
	b.pruneLocked(now)
	t, ok := b.toasts[toastID]
	if toastID == "" || !ok {
		t = &Toast{ID: id.NewToastID().String(), CreatedAt: now}
		b.toasts[t.ID] = t
	}
	t.Level = level
	t.Title = title
	t.Description = description
	t.Duration = duration
	t.UpdatedAt = now
	toastID = t.ID
	b.mu.Unlock()

	fields := []zap.Field{
		zap.String("toast", toastID),
		zap.String("level", string(level)),
		zap.String("title", title),
	}
	if description != "" {
		fields = append(fields, zap.String("description", description))
	}
	if level == LevelError {
		b.logger.Warn("Toast", fields...)
	} else {
		b.logger.Info("Toast", fields...)
	}
	return toastID
}

// Active returns unexpired toasts, oldest first, and forgets expired ones
func (b *Board) Active() []Toast {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(now)
	out := make([]Toast, 0, len(b.toasts))
	for _, t := range b.toasts {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// pruneLocked forgets expired toasts so the board stays bounded when
// nobody polls it. b.mu must be held.
func (b *Board) pruneLocked(now time.Time) {
	for key, t := range b.toasts {
		if t.Expired(now) {
			delete(b.toasts, key)
		}
	}
}

// Get returns toast id if it is still visible
func (b *Board) Get(toastID string) (Toast, bool) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.toasts[toastID]
	if !ok || t.Expired(now) {
		return Toast{}, false
	}
	return *t, true
}
