// SPDX-License-Identifier: GPL-3.0-or-later

// Package slp queries many game servers concurrently using the Server List
// Ping status protocol.
//
// # Wire Protocol
//
// A status query opens a TCP connection, sends a handshake packet announcing
// the server address, port, and protocol version with next state = status,
// sends a status request packet, and reads back one status response carrying
// a JSON document. Integers are encoded as VarInt values (see [AppendVarInt]
// and [DecodeVarInt]); strings as a VarInt byte length followed by UTF-8
// bytes (see [EncodeString]). The JSON payload is returned exactly as the
// server sent it, without any validation.
//
// # Single Queries
//
// A [*Connection] executes one [ServerQuery]: it resolves the target, dials
// the first endpoint that accepts the connection, and performs the exchange,
// moving through the [ConnState] states. [Connection.Query] returns exactly
// one [Outcome]. [Connection.Close] may be called from another goroutine to
// abort pending I/O.
//
// The dial path is a pipeline of composable operations sharing the [Func]
// interface and chained with [Compose2] and friends:
//
//   - [ConnectFunc]: dials TCP or UDP endpoints
//   - [NoDelayFunc]: disables Nagle's algorithm
//   - [ObserveConnFunc]: logs I/O operations and counts bytes
//   - [CancelWatchFunc]: closes the connection when the context is done
//
// # Many Queries
//
// A [*Dispatcher] runs an unbounded number of submitted queries while at most
// [Options.AdmissionLimit] of them are active at once. Each active query races
// against its own deadline ([ServerQuery.Timeout], [DefaultTimeout] when
// unset), which starts when the query is admitted and covers resolution,
// connect, and the exchange. A query losing the race has its socket closed
// and fails with [ErrTimeout]. Every accepted query produces exactly one
// [Outcome], delivered to the [Handler]. [Dispatcher.SealAndWait] stops
// accepting queries and waits for all the outcomes to be delivered.
//
// # Name Resolution
//
// By default, hostnames are resolved using [net.DefaultResolver]. Set
// [Config.Resolver] to a [*DNSResolver] to query a specific DNS server
// over UDP or TCP instead.
//
// # Observability
//
// All operations support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled.
//
// Operations emit span events (*Start/*Done pairs) that record timing and
// success or failure. Completion events include t0, t, err, and errClass,
// where errClass is computed by [Config.ErrClassifier]. I/O-level events
// (read, write, deadline changes) are emitted at [slog.LevelDebug]; a
// recovered panic in a [Handler] is emitted at [slog.LevelError]; all other
// events use [slog.LevelInfo].
//
// The [*Dispatcher] assigns each query a span ID generated by [NewSpanID]
// and adds it as the spanID attribute to every event of that query, so that
// the events of thousands of concurrent queries can be told apart. The same
// value is available as [Outcome.SpanID].
package slp
