// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shippers
//   - Development: colored console output for humans
//
// Every long-lived component receives a named child of the root logger
// (realtime, txn, chain, chat, http) so log lines can be filtered by the
// "component" key.
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	rt := logger.Named("realtime")
//	rt.Info("WebSocket connected", zap.String("url", url))
//	rt.Error("Error parsing WebSocket message", zap.Error(err))
package logging
