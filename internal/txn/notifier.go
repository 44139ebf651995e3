package txn

import "time"

const (
	DefaultErrorDuration  = 5 * time.Second
	ExtendedErrorDuration = 10 * time.Second
)

// Notifier surfaces progress to the user. An empty id passed to Success or
// Error creates a new notification instead of replacing one.
type Notifier interface {
	Loading(message string) (id string)
	Success(id, message string)
	Error(id, message, description string, duration time.Duration)
	Dismiss(id string)
}

// NopNotifier discards every notification
type NopNotifier struct{}

func (NopNotifier) Loading(string) string                       { return "" }
func (NopNotifier) Success(string, string)                      {}
func (NopNotifier) Error(string, string, string, time.Duration) {}
func (NopNotifier) Dismiss(string)                              {}
