// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSocketClosed indicates an exchange attempted without a usable socket.
	ErrSocketClosed = errors.New("socket closed")

	// ErrTimeout indicates that the per-query deadline elapsed first.
	ErrTimeout = errors.New("query exceeded timeout; cancelled")

	// ErrInvalidOptions indicates invalid [Options] or a nil [Handler]
	// passed to [NewDispatcher].
	ErrInvalidOptions = errors.New("slp: invalid dispatcher options")
)

// FailureKind classifies a failed query for diagnosis.
type FailureKind int

const (
	// FailureNone is the kind of a successful query.
	FailureNone FailureKind = iota

	// FailureEOF means the peer closed the stream early.
	FailureEOF

	// FailureTransport means resolution, connect, or I/O failed.
	FailureTransport

	// FailureProtocol means the peer violated the wire format.
	FailureProtocol

	// FailureTimeout means the per-query deadline elapsed.
	FailureTimeout

	// FailureInternal means the query unit faulted unexpectedly.
	FailureInternal
)

// String implements [fmt.Stringer].
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureEOF:
		return "EOF"
	case FailureTransport:
		return "I/O error"
	case FailureProtocol:
		return "protocol violation"
	case FailureTimeout:
		return "timeout"
	case FailureInternal:
		return "internal error"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// QueryError is the error carried by a failed [Outcome].
type QueryError struct {
	// Op is the failing step: "resolve", "connect", "write", "read", or "query".
	Op string

	// Kind classifies the failure.
	Kind FailureKind

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *QueryError) Error() string {
	if e.Kind == FailureTimeout {
		return ErrTimeout.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// newReadError classifies an error returned while reading the status response.
func newReadError(err error) *QueryError {
	switch {
	case errors.Is(err, ErrEOF):
		return &QueryError{Op: "read", Kind: FailureEOF, Err: err}
	case IsProtocolError(err):
		return &QueryError{Op: "read", Kind: FailureProtocol, Err: err}
	default:
		return &QueryError{Op: "read", Kind: FailureTransport, Err: err}
	}
}

// Outcome is the result of exactly one query attempt.
//
// The query succeeded when Err is nil, in which case JSON contains the
// status payload exactly as the server sent it.
type Outcome struct {
	// Target is the server that was queried.
	Target ServerTarget

	// JSON is the status payload. Empty on failure.
	JSON string

	// Err is nil on success and a [*QueryError] on failure.
	Err error

	// ErrClass is the [ErrClassifier] label of Err.
	ErrClass string

	// SpanID identifies the query in the structured logs.
	SpanID string

	// Elapsed is the time from admission to completion.
	Elapsed time.Duration
}

// OK returns whether the query succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason returns the human-readable failure reason or "" on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Kind returns the failure classification.
func (o Outcome) Kind() FailureKind {
	if o.Err == nil {
		return FailureNone
	}
	var qerr *QueryError
	if errors.As(o.Err, &qerr) {
		return qerr.Kind
	}
	return FailureInternal
}
