package history

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ambience-chat/internal/shared/id"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := newClient(config.HistoryConfig{URL: srv.URL, Timeout: 5 * time.Second, Retries: 2},
		time.Millisecond, 5*time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	return c, &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestMessages(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("roomId"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.True(t, id.IsValidPrefixed(r.Header.Get("X-Request-ID"), id.RequestPrefix))

		writeJSON(w, http.StatusOK, `{
			"success": true,
			"data": {"messages": [
				{"id": "m1", "sender": "0xabc", "content": "gm", "timestamp": 1700000000000, "roomId": "7"},
				{"id": "m2", "sender": {"id": "u1", "name": "alice", "address": "0xdef"}, "content": "hi", "timestamp": 1700000001000, "roomId": "7", "edited": true}
			]},
			"meta": {"requestId": "srv-1", "pagination": {"page": 1, "perPage": 50, "total": 2, "totalPages": 1}}
		}`)
	})

	page, err := c.Messages(context.Background(), Query{RoomID: "7"})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "0xabc", page.Messages[0].Sender.Address)
	assert.Equal(t, "alice", page.Messages[1].Sender.Name)
	assert.True(t, page.Messages[1].Edited)
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestRequestIDIsForwarded(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req_from_api", r.Header.Get(tracing.Header))
		writeJSON(w, http.StatusOK, `{"success": true, "data": {"messageId": "m9"}}`)
	})

	ctx := tracing.WithRequestID(context.Background(), "req_from_api")
	stored, err := c.Send(ctx, SendRequest{RoomID: "7", Content: "gm", Sender: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "m9", stored)
}

func TestMessagesClampsQuery(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, `{"success": true}`)
	})

	page, err := c.Messages(context.Background(), Query{RoomID: "7", Limit: 1000, Page: 3})
	require.NoError(t, err)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
}

func TestSend(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body SendRequest
		require.NoError(t, sonic.Unmarshal(raw, &body))
		assert.Equal(t, SendRequest{RoomID: "7", Content: "gm", Sender: "0xabc"}, body)

		writeJSON(w, http.StatusCreated, `{"success": true, "data": {"messageId": "m42"}}`)
	})

	messageID, err := c.Send(context.Background(), SendRequest{RoomID: "7", Content: "gm", Sender: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "m42", messageID)
}

func TestSendEmptyData(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": true, "data": {}}`)
	})

	_, err := c.Send(context.Background(), SendRequest{RoomID: "7"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEnvelopeError(t *testing.T) {
	c, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"success": false, "error": {"code": "bad_room", "message": "room does not exist"}}`)
	})

	_, err := c.Messages(context.Background(), Query{RoomID: "nope"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad_room", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "room does not exist")

	// Client errors are not retried and do not count against the breaker
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, uint32(0), c.Breaker().Counts().ConsecutiveFailures)
}

func TestUnsuccessfulWithoutError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": false}`)
	})

	_, err := c.Messages(context.Background(), Query{RoomID: "7"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.Status)
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	c, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			writeJSON(w, http.StatusServiceUnavailable, `{"success": false}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success": true, "data": {"messages": []}}`)
	})

	_, err := c.Messages(context.Background(), Query{RoomID: "7"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestSendIsNotRetried(t *testing.T) {
	c, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, http.StatusServiceUnavailable, `{"success": false}`)
	})

	_, err := c.Send(context.Background(), SendRequest{RoomID: "7", Content: "gm"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	c, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success": false, "error": {"code": 500, "message": "boom"}}`)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Messages(context.Background(), Query{RoomID: "7"})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, c.Breaker().State())

	before := atomic.LoadInt32(hits)
	_, err := c.Messages(context.Background(), Query{RoomID: "7"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(hits))
}

func TestNotConfigured(t *testing.T) {
	_, err := New(config.HistoryConfig{}, logging.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
