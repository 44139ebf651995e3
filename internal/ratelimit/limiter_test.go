package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(rules map[Action]Rule) (*Limiter, *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(rules)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowBurstThenRefill(t *testing.T) {
	l, now := newTestLimiter(nil)
	const addr = "0x1111111111111111111111111111111111111111"

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(ActionMessage, addr), "message %d", i)
	}
	assert.False(t, l.Allow(ActionMessage, addr))

	*now = now.Add(2 * time.Second)
	assert.True(t, l.Allow(ActionMessage, addr))
	assert.False(t, l.Allow(ActionMessage, addr))
}

func TestSubjectsAndActionsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(nil)

	for i := 0; i < 2; i++ {
		require.True(t, l.Allow(ActionRoom, "alice"))
	}
	assert.False(t, l.Allow(ActionRoom, "alice"))
	assert.True(t, l.Allow(ActionRoom, "bob"))
	assert.True(t, l.Allow(ActionMessage, "alice"))
}

func TestUnknownActionIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(nil)

	for i := 0; i < 100; i++ {
		require.True(t, l.Allow(Action("emoji"), "alice"))
	}
	assert.Equal(t, Status{Limit: -1, Remaining: -1}, l.Status(Action("emoji"), "alice"))
}

func TestCheckAndStatus(t *testing.T) {
	l, now := newTestLimiter(map[Action]Rule{
		ActionRoom: {Every: 30 * time.Second, Burst: 2},
	})

	st := l.Status(ActionRoom, "alice")
	assert.Equal(t, 2, st.Limit)
	assert.Equal(t, 2, st.Remaining)

	require.NoError(t, l.Check(ActionRoom, "alice"))
	require.NoError(t, l.Check(ActionRoom, "alice"))

	err := l.Check(ActionRoom, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, ActionRoom, limitErr.Action)
	assert.Equal(t, 30*time.Second, limitErr.RetryAfter)

	*now = now.Add(10 * time.Second)
	st = l.Status(ActionRoom, "alice")
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, 20*time.Second, st.RetryAfter)

	// Status must not consume tokens
	*now = now.Add(20 * time.Second)
	assert.Equal(t, 1, l.Status(ActionRoom, "alice").Remaining)
	assert.Equal(t, 1, l.Status(ActionRoom, "alice").Remaining)
}

func TestStatusNeverZeroWithoutRetry(t *testing.T) {
	l, now := newTestLimiter(map[Action]Rule{
		ActionRoom: {Every: 30 * time.Second, Burst: 2},
	})
	require.NoError(t, l.Check(ActionRoom, "alice"))
	require.NoError(t, l.Check(ActionRoom, "alice"))

	// Polling while the bucket refills must never report an empty bucket
	// that can be retried immediately
	for i := 0; i < 31; i++ {
		st := l.Status(ActionRoom, "alice")
		if st.Remaining == 0 {
			assert.Positive(t, st.RetryAfter, "at %ds", i)
		} else {
			assert.Zero(t, st.RetryAfter, "at %ds", i)
		}
		*now = now.Add(time.Second)
	}

	st := l.Status(ActionRoom, "alice")
	assert.Equal(t, 1, st.Remaining)
	assert.Zero(t, st.RetryAfter)
}

func TestCleanup(t *testing.T) {
	l, now := newTestLimiter(nil)

	l.Allow(ActionMessage, "alice")
	*now = now.Add(time.Minute)
	l.Allow(ActionMessage, "bob")

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Cleanup(30*time.Second))
	assert.Equal(t, 1, l.Len())
}

func TestPerSecond(t *testing.T) {
	assert.Equal(t, Rule{Every: 50 * time.Millisecond, Burst: 40}, PerSecond(20, 40))
	assert.Equal(t, Rule{Every: time.Second, Burst: 1}, PerSecond(0, 1))
}

func TestSetRule(t *testing.T) {
	l, _ := newTestLimiter(map[Action]Rule{})
	assert.True(t, l.Allow(ActionAPI, "10.0.0.1"))

	l.SetRule(ActionAPI, Rule{Every: time.Hour, Burst: 1})
	assert.True(t, l.Allow(ActionAPI, "10.0.0.2"))
	assert.False(t, l.Allow(ActionAPI, "10.0.0.2"))
}
