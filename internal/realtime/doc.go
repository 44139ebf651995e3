/*
Package realtime maintains the chat client's single WebSocket connection.

# Overview

A Manager owns at most one transport and at most one in-flight connection
attempt. Inbound frames are JSON envelopes of the form

	{"type": "message", "payload": {...}}

where type is one of message, room_update, presence or error. Frames are
decoded and fanned out to the handlers registered for their type, in
subscription order, on the read goroutine. Malformed frames and unknown
types are logged and dropped.

# Reconnection

When the transport fails to open or closes unexpectedly, the manager
schedules a retry after ReconnectInterval multiplied by the attempt number
(3s, 6s, 9s, ... by default). A successful connection resets the counter.
Once MaxReconnectAttempts retries have failed the manager stops and
delivers a single error event to subscribers:

	{"message": "Connection lost. Please refresh the page."}

Only an explicit Connect starts a new attempt after that. Disconnect never
schedules a retry.

# Usage

	mgr := realtime.NewManager(realtime.Config{
		Origin: "https://chat.example.com",
	}, logger).WithMetrics(metrics)

	unsubscribe := mgr.On(realtime.EventMessage, func(p json.RawMessage) {
		msg, err := realtime.Decode[realtime.ChatMessage](p)
		...
	})
	defer unsubscribe()

	if err := mgr.Connect(ctx); err != nil {
		// retries are already scheduled
	}
	mgr.Send(realtime.EventPresence, realtime.Presence{Address: addr, Status: "online"})

The manager is constructed once by the composition root and handed to the
components that need it.
*/
package realtime
