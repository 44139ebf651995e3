/*
Package resilience provides circuit breaker implementation for graceful degradation.

# Overview

This package implements the circuit breaker pattern in front of the remote
services the chat client depends on: the chain RPC endpoint and the message
history API. When a remote keeps failing, calls fail fast with ErrCircuitOpen
instead of piling up behind timeouts.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Caller cancellation is not counted as a remote failure
- Typed results through the generic Do helper
- State change callbacks for logging

# Usage

	breaker := resilience.New("chain-rpc", resilience.ForRemote(logger))

	receipt, err := resilience.Do(breaker, func() (*types.Receipt, error) {
		return backend.TransactionReceipt(ctx, hash)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
