// Package logger provides a configured slog factory and typed attribute
// helpers shared across the delivery core.
//
// The helpers keep log keys consistent between packages: a recipient ID is
// always "recipient_id", a broadcast is always "broadcast_id", and so on,
// which keeps downstream log queries stable.
package logger
