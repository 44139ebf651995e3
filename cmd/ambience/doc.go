// Command ambience runs the chat client and its local control API.
//
// Configuration comes from the environment (see internal/infrastructure/config).
// Flags set on the command line override the matching variables:
//
//	ambience -port 8000 -chain-id 42220 -ws-url wss://chat.example.com/ws
//
// SIGINT or SIGTERM shuts the server down gracefully.
package main
