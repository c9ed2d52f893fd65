// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"net"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for the connection to be closed when the context
// is done (cancelled or deadline exceeded).
//
// This is how a query that loses the race against its deadline is torn down:
// closing the socket makes any pending read or write fail immediately, so the
// query unwinds and its admission permit is released.
//
// The returned connection wraps the input connection. Closing it unregisters
// the context watcher and closes the underlying connection, so no watcher
// outlives the query even if the context is never cancelled.
type CancelWatchFunc struct{}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc] that closes
// the connection when the context is done.
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// Unwrap returns the underlying connection.
func (c *cancelWatchedConn) Unwrap() net.Conn {
	return c.Conn
}
