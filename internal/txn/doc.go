// Package txn coordinates the lifecycle of on-chain write operations.
//
// A Coordinator wraps a caller supplied SubmitFunc in a fixed state
// machine:
//
//	idle -> preparing -> waiting -> mining -> success
//	                \________\_________\----> error
//
// Progress is published on a shared Store and through a Notifier. Failures
// are classified (user rejected, network mismatch, gas estimation, generic)
// to pick the notification behavior; user rejections are never shown as
// errors. Execute, SwitchNetwork and ClearError report results as values and
// never panic.
//
// Concurrent Execute calls on one Coordinator share the Store and the last
// write wins.
package txn
