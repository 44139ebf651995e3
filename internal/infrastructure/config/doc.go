// Package config provides 12-factor configuration for the chat client.
//
// Configuration is loaded from environment variables with defaults.
// CLI flags in cmd/ambience override a subset of them.
//
// Configuration Sections:
//   - Server: local control API listener (host, port)
//   - Logging: log level and output format
//   - RateLimit: per-IP limits on the control API
//   - Realtime: WebSocket endpoint derivation and reconnect policy
//   - Chain: active chain, wallet key, receipt polling
//   - History: message history REST API
//   - Sanitize: maximum message length
//
// The network table (chain id, RPC URL, chat contract address) defaults to
// the deployed contract addresses and can be replaced by a YAML file named
// by CHAIN_NETWORKS_FILE.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("control API on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - APP_ORIGIN, WS_URL, WS_HOST, WS_PATH, WS_MAX_RECONNECT, WS_RECONNECT_INTERVAL
//   - CHAIN_ID, CHAIN_NETWORKS_FILE, WALLET_PRIVATE_KEY, CHAIN_POLL_INTERVAL
//   - HISTORY_API_URL, HISTORY_TIMEOUT, HISTORY_RETRIES
//   - MESSAGE_MAX_LENGTH
package config
