// Package server wires the chat client together and serves its control API.
//
// NewServer builds every component from a config.Config:
//   - zap logging and a Prometheus registry
//   - the realtime connection manager
//   - the chain client, the optional wallet and the chat contract facade
//   - the notification board and the transaction coordinator
//   - rate limiting, validation and sanitization
//   - the optional history API client
//   - the chat service and the gin router
//
// Run connects the chain client and the realtime manager, then serves HTTP
// until its context is cancelled. Close releases connections.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	srv, err := server.NewServer(cfg)
//	defer srv.Close()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
