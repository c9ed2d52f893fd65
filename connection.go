// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// ConnState is the state of a [*Connection].
//
// States only move forward: a connection starts in [StateIdle] and ends
// in either [StateDone] or [StateFailed].
type ConnState int32

const (
	StateIdle ConnState = iota
	StateResolving
	StateConnecting
	StateSending
	StateReceivingHeader
	StateReceivingBody
	StateDone
	StateFailed
)

// String implements [fmt.Stringer].
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateReceivingHeader:
		return "receivingHeader"
	case StateReceivingBody:
		return "receivingBody"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "ConnState(" + strconv.Itoa(int(s)) + ")"
	}
}

// NewConnection returns a new [*Connection] for the given query.
//
// The cfg argument contains the shared dependencies; the logger argument
// is the [SLogger] to use, usually already decorated with a span ID.
func NewConnection(cfg *Config, query ServerQuery, logger SLogger) *Connection {
	runtimex.Assert(cfg != nil)
	return &Connection{
		cfg:    cfg,
		logger: logger,
		query:  query,
	}
}

// Connection executes one status query over one TCP socket.
//
// A Connection is single-use: it performs at most one [Connection.Connect]
// and one [Connection.Exchange]. [Connection.Close] and [Connection.State]
// may be called from any goroutine, which is how a deadline forces the
// socket closed while I/O is pending.
type Connection struct {
	cfg    *Config
	logger SLogger
	query  ServerQuery

	// mu protects conn and closed.
	mu     sync.Mutex
	conn   net.Conn
	closed bool

	state atomic.Int32
}

// State returns the current state.
func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connection) setState(s ConnState) {
	c.state.Store(int32(s))
}

// fail moves to [StateFailed] and returns err.
func (c *Connection) fail(err *QueryError) error {
	c.setState(StateFailed)
	return err
}

// Connect resolves the target and connects to the first endpoint that
// accepts the connection, disabling Nagle's algorithm on the socket.
//
// Errors are [*QueryError] values with Op "resolve" or "connect".
func (c *Connection) Connect(ctx context.Context) error {
	endpoints, err := c.resolve(ctx)
	if err != nil {
		return c.fail(&QueryError{Op: "resolve", Kind: FailureTransport, Err: err})
	}

	c.setState(StateConnecting)
	pipeline := Compose4(
		NewConnectFunc(c.cfg, "tcp", c.query.Target.String(), c.logger),
		NoDelayFunc{},
		NewObserveConnFunc(c.cfg, c.logger),
		NewCancelWatchFunc(),
	)

	var errs []error
	for _, epnt := range endpoints {
		conn, err := pipeline.Call(ctx, epnt)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !c.attach(conn) {
			conn.Close()
			return c.fail(&QueryError{Op: "connect", Kind: FailureTransport, Err: ErrSocketClosed})
		}
		return nil
	}
	return c.fail(&QueryError{Op: "connect", Kind: FailureTransport, Err: errors.Join(errs...)})
}

// attach stores conn unless Close was already called.
func (c *Connection) attach(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

// resolve returns the endpoints to try, in the resolver's order.
func (c *Connection) resolve(ctx context.Context) ([]netip.AddrPort, error) {
	c.setState(StateResolving)
	target := c.query.Target
	if addr, err := netip.ParseAddr(target.Address); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), target.Port)}, nil
	}

	t0 := c.cfg.TimeNow()
	c.logger.Info(
		"resolveStart",
		slog.String("hostname", target.Address),
		slog.Time("t", t0),
	)
	addrs, err := c.cfg.Resolver.LookupNetIP(ctx, "ip", target.Address)
	if err == nil && len(addrs) <= 0 {
		err = fmt.Errorf("no addresses for %q", target.Address)
	}
	c.logger.Info(
		"resolveDone",
		slog.Any("addrs", addrs),
		slog.Any("err", err),
		slog.String("errClass", c.cfg.ErrClassifier.Classify(err)),
		slog.String("hostname", target.Address),
		slog.Time("t0", t0),
		slog.Time("t", c.cfg.TimeNow()),
	)
	if err != nil {
		return nil, err
	}

	endpoints := make([]netip.AddrPort, 0, len(addrs))
	for _, addr := range addrs {
		endpoints = append(endpoints, netip.AddrPortFrom(addr.Unmap(), target.Port))
	}
	return endpoints, nil
}

// socket returns the connected socket or nil if there is none or Close was called.
func (c *Connection) socket() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.conn
}

// Exchange sends the handshake and status request packets and reads the
// status response, returning its JSON payload.
//
// Without a usable socket it fails immediately with [ErrSocketClosed].
// When ctx is done, the connection is closed so that pending I/O fails.
// Errors are [*QueryError] values: [FailureEOF] when the peer closes the
// stream early, [FailureProtocol] for wire-format violations, and
// [FailureTransport] for any other I/O error.
func (c *Connection) Exchange(ctx context.Context) (string, error) {
	conn := c.socket()
	if conn == nil {
		return "", c.fail(&QueryError{Op: "write", Kind: FailureTransport, Err: ErrSocketClosed})
	}
	if err := ctx.Err(); err != nil {
		c.Close()
		return "", c.fail(&QueryError{Op: "write", Kind: FailureTransport, Err: err})
	}
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	c.setState(StateSending)
	target := c.query.Target
	handshake := BuildHandshakePacket(target.Address, target.Port, c.query.ProtocolVersion)
	for _, packet := range [][]byte{handshake, StatusRequestPacket()} {
		// A short write always comes with an error: see [io.Writer].
		if _, err := conn.Write(packet); err != nil {
			return "", c.fail(c.ioError("write", err))
		}
	}

	c.setState(StateReceivingHeader)
	reader := bufio.NewReader(conn)
	length, err := ReadStatusHeader(reader)
	if err != nil {
		return "", c.fail(c.readError(err))
	}

	c.setState(StateReceivingBody)
	payload, err := ReadStatusBody(reader, length)
	if err != nil {
		return "", c.fail(c.readError(err))
	}

	c.logger.Info(
		"statusResponse",
		slog.Int("jsonLength", length),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", c.cfg.TimeNow()),
	)
	c.setState(StateDone)
	return payload, nil
}

// ioError converts a transport error, distinguishing EOF.
func (c *Connection) ioError(op string, err error) *QueryError {
	if errors.Is(err, net.ErrClosed) && c.isClosed() {
		err = fmt.Errorf("%w: %w", ErrSocketClosed, err)
	}
	if errors.Is(err, ErrEOF) || errors.Is(err, io.EOF) {
		return &QueryError{Op: op, Kind: FailureEOF, Err: err}
	}
	return &QueryError{Op: op, Kind: FailureTransport, Err: err}
}

func (c *Connection) readError(err error) *QueryError {
	if errors.Is(err, ErrEOF) || IsProtocolError(err) {
		return newReadError(err)
	}
	return c.ioError("read", err)
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the socket, if any. It is safe to call concurrently and
// more than once; subsequent exchanges fail with [ErrSocketClosed].
func (c *Connection) Close() error {
	c.mu.Lock()
	conn := c.conn
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already || conn == nil {
		return nil
	}
	return conn.Close()
}

// Query runs [Connection.Connect] and [Connection.Exchange] in sequence,
// closes the socket, and returns the resulting [Outcome].
//
// Query never panics because of network input and never returns a
// partially filled outcome: either JSON is set or Err is.
func (c *Connection) Query(ctx context.Context) Outcome {
	t0 := c.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	target := c.query.Target
	c.logger.Info(
		"queryStart",
		slog.Time("deadline", deadline),
		slog.Int("protocolVersion", int(c.query.ProtocolVersion)),
		slog.String("target", target.String()),
		slog.Time("t", t0),
	)

	var (
		payload string
		err     = c.Connect(ctx)
	)
	if err == nil {
		payload, err = c.Exchange(ctx)
	}
	var nread, nwritten int64
	if bc := byteCounterOf(c.socket()); bc != nil {
		nread, nwritten = bc.BytesRead(), bc.BytesWritten()
	}
	c.Close()

	outcome := Outcome{
		Target:   target,
		JSON:     payload,
		Err:      err,
		ErrClass: c.cfg.ErrClassifier.Classify(err),
		Elapsed:  c.cfg.TimeNow().Sub(t0),
	}
	c.logger.Info(
		"queryDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", outcome.ErrClass),
		slog.String("failureKind", outcome.Kind().String()),
		slog.Int64("ioBytesRead", nread),
		slog.Int64("ioBytesWritten", nwritten),
		slog.String("state", c.State().String()),
		slog.String("target", target.String()),
		slog.Time("t0", t0),
		slog.Time("t", c.cfg.TimeNow()),
	)
	return outcome
}
