package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/chat"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

// unavailable errors map to 503. Their own text is safe to show.
var unavailable = []error{
	txn.ErrNoWallet,
	txn.ErrNoProvider,
	chain.ErrNotConnected,
	chain.ErrNoContract,
	history.ErrNotConfigured,
	resilience.ErrCircuitOpen,
	resilience.ErrTooManyRequests,
}

// unavailableCause returns the entry of unavailable that err wraps, or nil
func unavailableCause(err error) error {
	for _, target := range unavailable {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

// statusFor maps a service error to an HTTP status
func (h *Handlers) statusFor(err error) int {
	var fieldErrs validation.FieldErrors
	var apiErr *history.APIError

	switch {
	case errors.As(err, &fieldErrs),
		errors.Is(err, chat.ErrInvalidRoomID),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrProfileAddress),
		errors.Is(err, validation.ErrAvatarEmpty),
		errors.Is(err, validation.ErrAvatarType),
		errors.Is(err, chain.ErrUnsupportedChain):
		return http.StatusBadRequest
	case errors.Is(err, validation.ErrAvatarTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chat.ErrNoProfile):
		return http.StatusNotFound
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case unavailableCause(err) != nil:
		return http.StatusServiceUnavailable
	case errors.Is(err, txn.ErrReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}

	if h.classifier != nil && h.classifier.Classify(err) == txn.ClassUserRejected {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// publicMessage is the error text shown for a server side failure. Wrapped
// errors can carry RPC URLs with keys or internal addresses.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		if cause := unavailableCause(err); cause != nil {
			return cause.Error()
		}
		return "service unavailable"
	case http.StatusBadGateway:
		return "history service request failed"
	case http.StatusGatewayTimeout:
		return "request timed out"
	}
	return "internal error"
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := h.statusFor(err)
	body := gin.H{
		"success": false,
		"error":   err.Error(),
	}

	if status >= http.StatusInternalServerError {
		requestID := tracing.RequestID(c.Request.Context())
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
		body["error"] = publicMessage(status, err)
		if requestID != "" {
			body["request_id"] = requestID
		}
	}

	var fieldErrs validation.FieldErrors
	if errors.As(err, &fieldErrs) {
		body["fields"] = fieldErrs.Fields()
	}

	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		secs := int(math.Ceil(limitErr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		body["retry_after"] = secs
	}

	c.JSON(status, body)
}
