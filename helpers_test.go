// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/require"
)

// logRecorder collects the records emitted through a [*slog.Logger].
//
// It is safe for concurrent use, since dispatcher tests log from many goroutines.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// Records returns a copy of the collected records.
func (lr *logRecorder) Records() []slog.Record {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return append([]slog.Record(nil), lr.records...)
}

// Messages returns the messages of the collected records, in order.
func (lr *logRecorder) Messages() []string {
	var out []string
	for _, record := range lr.Records() {
		out = append(out, record.Message)
	}
	return out
}

// newCapturingLogger returns a logger that captures all log records into
// the returned recorder, for inspection after exercising the code under test.
func newCapturingLogger() (*slog.Logger, *logRecorder) {
	lr := &logRecorder{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			lr.mu.Lock()
			lr.records = append(lr.records, record)
			lr.mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), lr
}

// recordAttrs returns the attributes of record as a map.
func recordAttrs(record slog.Record) map[string]slog.Value {
	out := make(map[string]slog.Value)
	record.Attrs(func(attr slog.Attr) bool {
		out[attr.Key] = attr.Value
		return true
	})
	return out
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// scriptedConn is a [*netstub.FuncConn] that records what is written and
// serves reads from a fixed response followed by EOF.
type scriptedConn struct {
	*netstub.FuncConn

	mu      sync.Mutex
	written bytes.Buffer
	closed  int
}

// Written returns the bytes written so far.
func (sc *scriptedConn) Written() []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return bytes.Clone(sc.written.Bytes())
}

// CloseCount returns how many times Close was called.
func (sc *scriptedConn) CloseCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.closed
}

func newScriptedConn(response []byte) *scriptedConn {
	sc := &scriptedConn{FuncConn: newMinimalConn()}
	reader := bytes.NewReader(response)
	sc.ReadFunc = func(b []byte) (int, error) {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if sc.closed > 0 {
			return 0, net.ErrClosed
		}
		return reader.Read(b)
	}
	sc.WriteFunc = func(b []byte) (int, error) {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if sc.closed > 0 {
			return 0, net.ErrClosed
		}
		return sc.written.Write(b)
	}
	sc.CloseFunc = func() error {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.closed++
		return nil
	}
	return sc
}

// newScriptedDialer returns a dialer that always returns conn.
func newScriptedDialer(conn net.Conn) *netstub.FuncDialer {
	return &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			return conn, nil
		},
	}
}

// encodeStatusResponse returns the wire encoding of a status response
// carrying the given JSON payload.
func encodeStatusResponse(payload string) []byte {
	body := AppendVarInt(nil, 0x00)
	body = append(body, EncodeString(payload)...)
	return append(AppendVarInt(nil, uint32(len(body))), body...)
}

// startStatusServer starts a TCP server on 127.0.0.1 that reads the
// handshake and the status request and replies with the given payload.
//
// The server stops when the test ends.
func startStatusServer(t *testing.T, payload string) netip.AddrPort {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveStatus(conn, payload)
		}
	}()
	return netip.MustParseAddrPort(listener.Addr().String())
}

func serveStatus(conn net.Conn, payload string) {
	defer conn.Close()
	br := asByteReader(conn)
	for range 2 {
		length, err := DecodeVarInt(br)
		if err != nil {
			return
		}
		if _, err := io.CopyN(io.Discard, br, int64(length)); err != nil {
			return
		}
	}
	conn.Write(encodeStatusResponse(payload))
}
