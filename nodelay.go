// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"net"
)

// noDelayConn is implemented by [*net.TCPConn].
type noDelayConn interface {
	SetNoDelay(noDelay bool) error
}

// NoDelayFunc disables Nagle's algorithm on TCP connections.
//
// The status exchange is two tiny writes followed by a read, so batching
// the writes only adds latency. Connections that do not support the option
// (e.g., test doubles) pass through unchanged.
//
// The zero value is ready to use.
type NoDelayFunc struct{}

var _ Func[net.Conn, net.Conn] = NoDelayFunc{}

// Call implements [Func]. On failure it closes conn, per the [Func] contract.
func (NoDelayFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	if tc, ok := conn.(noDelayConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}
