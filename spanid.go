// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// Every query gets its own span covering resolution, connect, and the
// status exchange, so all the events of one query can be correlated.
// The same value is reported as [Outcome.SpanID].
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
