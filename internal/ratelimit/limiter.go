// Package ratelimit throttles user actions with token buckets.
//
// Each (action, subject) pair gets its own bucket: a wallet address sending
// messages, an address creating rooms, a client IP calling the control API.
// Actions without a rule are never limited.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Action names a class of throttled operations
type Action string

const (
	ActionMessage  Action = "message"
	ActionRoom     Action = "room"
	ActionProfile  Action = "profile"
	ActionContract Action = "contract"
	ActionAPI      Action = "api"
)

// ErrRateLimited is matched by every *LimitError
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError reports which action was throttled and when to retry
type LimitError struct {
	Action     Action
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) true
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Rule refills one token every Every, up to Burst tokens
type Rule struct {
	Every time.Duration
	Burst int
}

// PerSecond builds a rule from a request rate
func PerSecond(rps, burst int) Rule {
	if rps <= 0 {
		rps = 1
	}
	return Rule{Every: time.Second / time.Duration(rps), Burst: burst}
}

// DefaultRules returns the limits applied to chat actions
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionMessage:  {Every: 2 * time.Second, Burst: 5},
		ActionRoom:     {Every: 30 * time.Second, Burst: 2},
		ActionProfile:  {Every: 10 * time.Second, Burst: 3},
		ActionContract: {Every: 5 * time.Second, Burst: 3},
	}
}

// Status is the remaining budget of one bucket
type Status struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retryAfter"`
}

type key struct {
	action  Action
	subject string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one bucket per (action, subject). It is safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	rules   map[Action]Rule
	buckets map[key]*bucket
	now     func() time.Time
}

// New creates a limiter; nil rules selects DefaultRules
func New(rules map[Action]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	cp := make(map[Action]Rule, len(rules))
	for a, r := range rules {
		cp[a] = r
	}
	return &Limiter{
		rules:   cp,
		buckets: make(map[key]*bucket),
		now:     time.Now,
	}
}

// SetRule adds or replaces the rule for action. Existing buckets keep
// their old rate until they are cleaned up.
func (l *Limiter) SetRule(action Action, rule Rule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules[action] = rule
}

func (l *Limiter) bucketFor(action Action, subject string, now time.Time) (*bucket, Rule, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.rules[action]
	if !ok {
		return nil, Rule{}, false
	}
	k := key{action: action, subject: subject}
	b, exists := l.buckets[k]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(rule.Every), rule.Burst)}
		l.buckets[k] = b
	}
	b.lastSeen = now
	return b, rule, true
}

// Allow takes one token for (action, subject) and reports whether it was
// available
func (l *Limiter) Allow(action Action, subject string) bool {
	now := l.now()
	b, _, ok := l.bucketFor(action, subject, now)
	if !ok {
		return true
	}
	return b.limiter.AllowN(now, 1)
}

// Check is Allow returning a *LimitError when throttled
func (l *Limiter) Check(action Action, subject string) error {
	if l.Allow(action, subject) {
		return nil
	}
	return &LimitError{Action: action, RetryAfter: l.Status(action, subject).RetryAfter}
}

// Status reports the budget of (action, subject) without consuming it
func (l *Limiter) Status(action Action, subject string) Status {
	now := l.now()
	b, rule, ok := l.bucketFor(action, subject, now)
	if !ok {
		return Status{Limit: -1, Remaining: -1}
	}

	// TokensAt is a float; a refilled token can read as 0.999999...
	tokens := b.limiter.TokensAt(now)
	st := Status{Limit: rule.Burst, Remaining: max(int(math.Floor(tokens+1e-9)), 0)}
	if st.Remaining > 0 {
		return st
	}

	wait := time.Duration((1 - tokens) * float64(rule.Every)).Round(time.Millisecond)
	st.RetryAfter = max(wait, time.Millisecond)
	return st
}

// Cleanup forgets buckets idle for longer than maxIdle and returns how
// many were removed
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
