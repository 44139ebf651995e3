// Package history is the client of the message history REST API.
//
// Responses use the envelope {success, data, error, meta}. Reads are
// retried by go-retryablehttp; Send is not, so a message is never stored
// twice. Every call runs through a circuit breaker, so a dead history
// service fails fast instead of stalling the chat.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
)

var (
	ErrNotConfigured = errors.New("history API URL is not configured")
	ErrEmptyResponse = errors.New("history API returned no data")
)

// Defaults for page size and retry waits
const (
	DefaultLimit   = 50
	MaxLimit       = 200
	defaultWaitMin = 200 * time.Millisecond
	defaultWaitMax = 2 * time.Second
)

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"totalPages,omitempty"`
}

// APIError is the error member of the envelope. Status is the HTTP status
// of the response that carried it.
type APIError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("history API error %v: %s", e.Code, e.Message)
	}
	return "history API error: " + e.Message
}

// Meta is the meta member of the envelope
type Meta struct {
	RequestID  string      `json:"requestId,omitempty"`
	Timestamp  int64       `json:"timestamp,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Response is the envelope of every history API response
type Response[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

// Query selects a page of a room's messages
type Query struct {
	RoomID string
	Limit  int
	Page   int
}

// Page is a page of messages
type Page struct {
	Messages   []realtime.ChatMessage `json:"messages"`
	Pagination *Pagination            `json:"pagination,omitempty"`
}

// SendRequest is the body of POST /messages
type SendRequest struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type sendResult struct {
	MessageID string `json:"messageId"`
}

type noRetryKey struct{}

// withoutRetry marks a request that must reach the server at most once.
// A POST that failed after the server stored it would store it again.
func withoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

// Client calls the history API
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// New creates a client for cfg.URL
func New(cfg config.HistoryConfig, logger *logging.Logger) (*Client, error) {
	return newClient(cfg, defaultWaitMin, defaultWaitMax, logger)
}

func newClient(cfg config.HistoryConfig, waitMin, waitMax time.Duration, logger *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = waitMin
	retryClient.RetryWaitMax = waitMax
	retryClient.Logger = nil
	// The final response reaches resty so the envelope can be read
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Value(noRetryKey{}) != nil {
			return false, nil
		}
		retry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		return retry, nil
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ambience-chat/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	settings := resilience.ForRemote(logger)
	settings.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status < http.StatusInternalServerError
		}
		return err == nil || errors.Is(err, context.Canceled)
	}

	return &Client{
		resty:   restyClient,
		breaker: resilience.New("history-api", settings),
		logger:  logger.Named("history"),
	}, nil
}

// WithMetrics attaches a metrics collector
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Breaker exposes the circuit breaker
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Messages fetches one page of q.RoomID's history
func (c *Client) Messages(ctx context.Context, q Query) (Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	var env Response[Page]
	err := c.do(ctx, "history_get_messages", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetQueryParam("roomId", q.RoomID).
			SetQueryParam("limit", strconv.Itoa(limit)).
			SetQueryParam("page", strconv.Itoa(page)).
			SetResult(&env).
			SetError(&env).
			Get("/messages")
	}, &env.Success, &env.Error)
	if err != nil {
		return Page{}, err
	}
	if env.Data == nil {
		return Page{Messages: []realtime.ChatMessage{}}, nil
	}

	out := *env.Data
	if out.Pagination == nil && env.Meta != nil {
		out.Pagination = env.Meta.Pagination
	}
	return out, nil
}

// Send stores a message and returns its server id
func (c *Client) Send(ctx context.Context, body SendRequest) (string, error) {
	var env Response[sendResult]
	err := c.do(withoutRetry(ctx), "history_send_message", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetBody(body).
			SetResult(&env).
			SetError(&env).
			Post("/messages")
	}, &env.Success, &env.Error)
	if err != nil {
		return "", err
	}
	if env.Data == nil || env.Data.MessageID == "" {
		return "", ErrEmptyResponse
	}
	return env.Data.MessageID, nil
}

// do runs send through the breaker and turns the envelope into an error.
// success and apiErr point into the caller's decoded envelope.
func (c *Client) do(ctx context.Context, method string, send func(*resty.Request) (*resty.Response, error), success *bool, apiErr **APIError) error {
	requestID := tracing.FromContext(ctx)
	timer := monitoring.NewTimer(c.metrics, method)

	err := c.breaker.Execute(func() error {
		resp, err := send(c.resty.R().SetContext(ctx).SetHeader(tracing.Header, requestID))
		if err != nil {
			return err
		}
		if *apiErr != nil {
			(*apiErr).Status = resp.StatusCode()
			return *apiErr
		}
		if resp.IsError() {
			return &APIError{Code: resp.StatusCode(), Message: http.StatusText(resp.StatusCode()), Status: resp.StatusCode()}
		}
		if !*success {
			return &APIError{Message: "request was not successful", Status: resp.StatusCode()}
		}
		return nil
	})
	timer.Stop(err)

	if err != nil {
		c.logger.Warn("History request failed",
			zap.String("method", method),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
