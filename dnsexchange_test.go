// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLogContext returns a dnsExchangeLogContext for a UDP conn between
// fixed addresses, logging to logger.
func newTestLogContext(logger SLogger) *dnsExchangeLogContext {
	conn := newMinimalConn()
	conn.LocalAddrFunc = func() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321} }
	conn.RemoteAddrFunc = func() net.Addr { return &net.UDPAddr{IP: net.IPv4(8, 8, 8, 8), Port: 53} }
	return newDNSExchangeLogContext(NewConfig(), logger, conn, "udp")
}

// newDNSExchangeLogContext captures the connection addresses.
func TestNewDNSExchangeLogContext(t *testing.T) {
	lc := newTestLogContext(DefaultSLogger())
	assert.Equal(t, "127.0.0.1:54321", lc.localAddr)
	assert.Equal(t, "8.8.8.8:53", lc.remoteAddr)
	assert.Equal(t, "udp", lc.protocol)
	assert.Equal(t, "udp", lc.serverProtocol)
}

// logStart and logDone emit the exchange span with the query name.
func TestDNSExchangeLogContextSpan(t *testing.T) {
	logger, records := newCapturingLogger()
	lc := newTestLogContext(logger)

	t0 := time.Now()
	wantErr := errors.New("mocked error")
	lc.logStart(t0, t0.Add(time.Second), "mc.example.com")
	lc.logDone(t0, t0.Add(time.Second), "mc.example.com", wantErr)

	got := records.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "dnsExchangeStart", got[0].Message)
	assert.Equal(t, "dnsExchangeDone", got[1].Message)

	attrs := recordAttrs(got[1])
	assert.Equal(t, "mc.example.com", attrs["dnsQueryName"].String())
	assert.Equal(t, wantErr, attrs["err"].Any())
	assert.NotEmpty(t, attrs["errClass"].String())
}

// The response event carries the previously observed raw query.
func TestDNSExchangeLogContextObservers(t *testing.T) {
	logger, records := newCapturingLogger()
	lc := newTestLogContext(logger)

	rawQuery := []byte{0x00, 0x01, 0x02}
	rawResp := []byte{0x03, 0x04, 0x05}
	lc.observeQuery(rawQuery)
	lc.observeResponse(rawResp)

	got := records.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "dnsQuery", got[0].Message)
	assert.Equal(t, "dnsResponse", got[1].Message)

	attrs := recordAttrs(got[1])
	assert.Equal(t, rawQuery, attrs["dnsRawQuery"].Any())
	assert.Equal(t, rawResp, attrs["dnsRawResponse"].Any())
}

// connOnlyDialer refuses to dial.
func TestConnOnlyDialer(t *testing.T) {
	conn, err := connOnlyDialer{}.DialContext(context.Background(), "udp", "127.0.0.1:53")
	require.ErrorIs(t, err, errDNSTransportDialed)
	assert.ErrorContains(t, err, "udp dial to 127.0.0.1:53")
	assert.Nil(t, conn)
}
