// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// errDNSTransportDialed indicates a DNS transport dialing on its own.
var errDNSTransportDialed = errors.New("slp: DNS transport must reuse the resolver connection")

// connOnlyDialer is the [Dialer] handed to the DNS transports. They exchange
// over the connection dialed by the [*DNSResolver] pipeline, so any dial
// fails with errDNSTransportDialed.
type connOnlyDialer struct{}

var _ Dialer = connOnlyDialer{}

// DialContext implements [Dialer].
func (connOnlyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return nil, fmt.Errorf("%w: refusing %s dial to %s", errDNSTransportDialed, network, address)
}

// dnsExchangeLogContext holds the logging state of one DNS exchange.
type dnsExchangeLogContext struct {
	errClassifier  ErrClassifier
	localAddr      string
	logger         SLogger
	protocol       string
	rawQuery       []byte
	remoteAddr     string
	serverProtocol string
	timeNow        func() time.Time
}

func newDNSExchangeLogContext(cfg *Config, logger SLogger, conn net.Conn, serverProtocol string) *dnsExchangeLogContext {
	return &dnsExchangeLogContext{
		errClassifier:  cfg.ErrClassifier,
		localAddr:      safeconn.LocalAddr(conn),
		logger:         logger,
		protocol:       safeconn.Network(conn),
		remoteAddr:     safeconn.RemoteAddr(conn),
		serverProtocol: serverProtocol,
		timeNow:        cfg.TimeNow,
	}
}

func (lc *dnsExchangeLogContext) logStart(t0, deadline time.Time, name string) {
	lc.logger.Info(
		"dnsExchangeStart",
		slog.Time("deadline", deadline),
		slog.String("dnsQueryName", name),
		slog.String("localAddr", lc.localAddr),
		slog.String("protocol", lc.protocol),
		slog.String("remoteAddr", lc.remoteAddr),
		slog.String("serverProtocol", lc.serverProtocol),
		slog.Time("t", t0),
	)
}

func (lc *dnsExchangeLogContext) logDone(t0, deadline time.Time, name string, err error) {
	lc.logger.Info(
		"dnsExchangeDone",
		slog.Time("deadline", deadline),
		slog.String("dnsQueryName", name),
		slog.Any("err", err),
		slog.String("errClass", lc.errClassifier.Classify(err)),
		slog.String("localAddr", lc.localAddr),
		slog.String("protocol", lc.protocol),
		slog.String("remoteAddr", lc.remoteAddr),
		slog.String("serverProtocol", lc.serverProtocol),
		slog.Time("t0", t0),
		slog.Time("t", lc.timeNow()),
	)
}

// observeQuery logs the raw query and remembers it for observeResponse.
func (lc *dnsExchangeLogContext) observeQuery(rawQuery []byte) {
	lc.logger.Debug(
		"dnsQuery",
		slog.Any("dnsRawQuery", rawQuery),
		slog.String("localAddr", lc.localAddr),
		slog.String("protocol", lc.protocol),
		slog.String("remoteAddr", lc.remoteAddr),
		slog.String("serverProtocol", lc.serverProtocol),
		slog.Time("t", lc.timeNow()),
	)
	lc.rawQuery = rawQuery
}

func (lc *dnsExchangeLogContext) observeResponse(rawResp []byte) {
	lc.logger.Debug(
		"dnsResponse",
		slog.Any("dnsRawQuery", lc.rawQuery),
		slog.Any("dnsRawResponse", rawResp),
		slog.String("localAddr", lc.localAddr),
		slog.String("protocol", lc.protocol),
		slog.String("remoteAddr", lc.remoteAddr),
		slog.String("serverProtocol", lc.serverProtocol),
		slog.Time("t", lc.timeNow()),
	)
}
