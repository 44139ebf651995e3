/*
Package monitoring provides metrics collection for the chat client.

# Overview

This package implements Prometheus-based metrics for the local control API,
the realtime connection, transaction flows and chain RPC calls. All
collectors are registered on an injected prometheus.Registerer so that
tests and embedded uses can keep their own registry.

# Features

  - Control API request metrics (latency, throughput, size)
  - Realtime metrics (connection gauge, frames by direction and type,
    dropped frames, reconnect attempts, exhausted reconnect budget)
  - Transaction outcomes by status and error class, flow duration
  - Network switch outcomes
  - Chain RPC calls and latency
  - Uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, "eth_getTransactionReceipt")
	receipt, err := backend.TransactionReceipt(ctx, hash)
	timer.Stop(err)

Every Record method is a no-op on a nil *Metrics, so components accept an
optional collector.
*/
package monitoring
