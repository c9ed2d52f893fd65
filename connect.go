// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// Tests replace it to hand out instrumented or blocking connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectFunc returns a [*ConnectFunc] dialing with [Config.Dialer].
//
// The serverName is the name the dial serves: the query target for a
// status connection, or the hostname being resolved for a [*DNSResolver]
// connection. It only appears in the log events and may be empty.
func NewConnectFunc(cfg *Config, network, serverName string, logger SLogger) *ConnectFunc {
	return &ConnectFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Network:       network,
		ServerName:    serverName,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc is the pipeline stage turning an endpoint into a [net.Conn].
//
// Returns either a valid [net.Conn] or an error, never both. Fields
// must not change once the first Call has started.
type ConnectFunc struct {
	// Dialer dials the connection.
	Dialer Dialer

	// ErrClassifier fills the errClass attribute of connectDone.
	ErrClassifier ErrClassifier

	// Logger receives the connectStart and connectDone events.
	Logger SLogger

	// Network is "tcp" for status queries and "udp" or "tcp" for DNS.
	Network string

	// ServerName is logged as the serverName attribute when not empty.
	ServerName string

	// TimeNow returns the current time.
	TimeNow func() time.Time
}

var _ Func[netip.AddrPort, net.Conn] = &ConnectFunc{}

// Call dials address. The dial ends no later than the ctx deadline.
func (op *ConnectFunc) Call(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
	deadline, _ := ctx.Deadline()
	common := op.commonAttrs(address, deadline)

	t0 := op.TimeNow()
	op.Logger.Info("connectStart", append(common, slog.Time("t", t0))...)

	conn, err := op.Dialer.DialContext(ctx, op.Network, address.String())

	t := op.TimeNow()
	op.Logger.Info("connectDone", append(common,
		slog.Duration("elapsed", t.Sub(t0)),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", t),
	)...)
	return conn, err
}

// commonAttrs returns the attributes shared by connectStart and connectDone.
func (op *ConnectFunc) commonAttrs(address netip.AddrPort, deadline time.Time) []any {
	attrs := []any{
		slog.Time("deadline", deadline),
		slog.String("protocol", op.Network),
		slog.String("remoteAddr", address.String()),
	}
	if op.ServerName != "" {
		attrs = append(attrs, slog.String("serverName", op.ServerName))
	}
	return attrs[:len(attrs):len(attrs)]
}
