// Package tracing propagates request ids through the control API.
//
// Middleware reads X-Request-ID from the incoming request or mints one,
// stores it in the request context and echoes it on the response.
// Outbound clients call FromContext to forward the same id upstream, so a
// history API log line can be matched with the control API request that
// caused it.
//
// Example Usage:
//
//	router.Use(tracing.Middleware(logger))
//
//	requestID := tracing.FromContext(ctx)
//	req.SetHeader(tracing.Header, requestID)
package tracing
