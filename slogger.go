//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package slp

import "log/slog"

// SLogger abstracts the [*slog.Logger] behavior.
//
// By using an abstraction we allow for unit testing and alternative implementations.
//
// This package uses three log levels:
//   - Info for lifecycle and protocol events (dispatcher, query, resolve,
//     connect, close, status response)
//   - Debug for per-I/O events (read, write, set deadline)
//   - Error for faults that are recovered and dropped (e.g., a panicking [Handler])
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultSLogger returns the default [SLogger] to use.
//
// The default is a no-op logger that discards all output. This follows the
// library convention of not writing to stdout/stderr unless explicitly configured.
//
// Use a custom [*slog.Logger] for emitting logs.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

// discardSLogger is a no-op [SLogger] that discards all log messages.
type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(msg string, args ...any) {
	// nothing
}

// Info implements [SLogger].
func (discardSLogger) Info(msg string, args ...any) {
	// nothing
}

// Error implements [SLogger].
func (discardSLogger) Error(msg string, args ...any) {
	// nothing
}

// withSpanID returns an [SLogger] adding the spanID attribute to every event.
func withSpanID(logger SLogger, spanID string) SLogger {
	return &spanSLogger{logger: logger, spanID: slog.String("spanID", spanID)}
}

// spanSLogger decorates every event with a span identifier.
type spanSLogger struct {
	logger SLogger
	spanID slog.Attr
}

var _ SLogger = &spanSLogger{}

// Debug implements [SLogger].
func (sl *spanSLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, append(args, sl.spanID)...)
}

// Info implements [SLogger].
func (sl *spanSLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, append(args, sl.spanID)...)
}

// Error implements [SLogger].
func (sl *spanSLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, append(args, sl.spanID)...)
}
