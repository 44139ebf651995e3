// Package http provides the local control API of the chat client.
//
// Endpoints:
//   - Health: / and /health
//   - Transaction state: /state, /state/clear
//   - Network: /network, /network/switch
//   - Notifications: /toasts, /toasts/:id
//   - Presence and rooms: /presence, /rooms
//   - Profile: /profile
//   - Room actions: /rooms/:id/join, /rooms/:id/leave, /rooms/:id/settings
//   - Messages: /rooms/:id/messages, /rooms/:id/feed, /rooms/:id/history
//
// Handlers return JSON. Failures carry {"success": false, "error": "..."}
// with a status derived from the error; validation failures add a
// "fields" map keyed by JSON field name. Server side failures (5xx) show a
// fixed message and the request id; the full error is only logged.
//
// Example Usage:
//
//	handlers := http.NewHandlers(chatService, coordinator, board, chainClient, logger)
//	handlers.Register(router)
package http
