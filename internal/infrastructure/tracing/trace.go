package tracing

import (
	"context"

	"github.com/GriffinCanCode/ambience-chat/internal/shared/id"
)

// Header carries the request id on HTTP requests and responses
const Header = "X-Request-ID"

// maxIncomingLength bounds ids accepted from callers
const maxIncomingLength = 128

type contextKey struct{}

// WithRequestID returns ctx carrying requestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the id stored in ctx, or ""
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(contextKey{}).(string)
	return v
}

// FromContext returns the id stored in ctx or mints a new one
func FromContext(ctx context.Context) string {
	if v := RequestID(ctx); v != "" {
		return v
	}
	return id.NewRequestID().String()
}

func acceptable(requestID string) bool {
	if requestID == "" || len(requestID) > maxIncomingLength {
		return false
	}
	for _, r := range requestID {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
