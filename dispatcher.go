// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"golang.org/x/sync/semaphore"
)

// Handler receives the [Outcome] of each accepted query.
//
// HandleOutcome is called exactly once per query accepted by
// [Dispatcher.Submit], from one of the dispatcher's callback goroutines.
// With more than one callback worker, calls may be concurrent.
type Handler interface {
	HandleOutcome(outcome Outcome)
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(Outcome)

var _ Handler = HandlerFunc(nil)

// HandleOutcome implements [Handler].
func (f HandlerFunc) HandleOutcome(outcome Outcome) {
	f(outcome)
}

// Stats is a snapshot of the [*Dispatcher] counters.
type Stats struct {
	// Submitted counts the queries accepted by Submit.
	Submitted int64

	// Rejected counts the queries refused because the dispatcher was sealed.
	Rejected int64

	// InFlight counts the accepted queries whose outcome was not delivered yet.
	InFlight int64

	// Active counts the queries currently holding an admission permit.
	Active int64

	// Succeeded counts the completed queries with a JSON payload.
	Succeeded int64

	// Failed counts the completed queries that failed, including timeouts.
	Failed int64

	// TimedOut counts the queries that exceeded their deadline.
	TimedOut int64
}

// Dispatcher runs many status queries concurrently.
//
// Submitted queries wait in an unbounded run queue. A pool of worker
// goroutines takes queries from the queue, acquires one admission permit
// each, and starts them. At most [Options.AdmissionLimit] queries are
// active at any time. Outcomes are delivered to the [Handler] through a
// separate pool of callback goroutines, so a slow handler does not delay
// network I/O.
//
// Construct using [NewDispatcher]. All methods are safe for concurrent use.
type Dispatcher struct {
	callbacks sync.WaitGroup
	cfg       *Config
	handler   Handler
	logger    SLogger
	opts      Options
	outcomes  *fifo[Outcome]
	permits   *semaphore.Weighted
	runq      *fifo[ServerQuery]
	sealOnce  sync.Once
	sealed    atomic.Bool
	tasks     sync.WaitGroup
	workers   sync.WaitGroup

	active    atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
	rejected  atomic.Int64
	submitted atomic.Int64
	succeeded atomic.Int64
	timedOut  atomic.Int64
}

// NewDispatcher creates a [*Dispatcher] and starts its goroutines.
//
// The cfg argument contains the shared dependencies. The handler receives
// every outcome. The logger receives the dispatcher events as well as the
// per-query events, which carry a spanID attribute.
//
// Invalid opts or a nil handler cause an error wrapping [ErrInvalidOptions].
// This is the only way in which the dispatcher API fails.
func NewDispatcher(cfg *Config, opts Options, handler Handler, logger SLogger) (*Dispatcher, error) {
	runtimex.Assert(cfg != nil)
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidOptions)
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = DefaultSLogger()
	}

	d := &Dispatcher{
		cfg:      cfg,
		handler:  handler,
		logger:   logger,
		opts:     opts,
		outcomes: newFIFO[Outcome](),
		permits:  semaphore.NewWeighted(int64(opts.AdmissionLimit)),
		runq:     newFIFO[ServerQuery](),
	}
	for range opts.Workers {
		d.workers.Add(1)
		go d.admitLoop()
	}
	for range opts.CallbackWorkers {
		d.callbacks.Add(1)
		go d.deliverLoop()
	}

	logger.Info(
		"dispatcherStart",
		slog.Int("admissionLimit", opts.AdmissionLimit),
		slog.Int("callbackWorkers", opts.CallbackWorkers),
		slog.Time("t", cfg.TimeNow()),
		slog.Int("workers", opts.Workers),
	)
	return d, nil
}

// Options returns the effective options, with defaults filled in.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Submit queues q and returns true, or returns false without side effects
// other than counting the rejection once [Dispatcher.SealAndWait] was called.
//
// Submit never blocks on I/O or on admission permits.
func (d *Dispatcher) Submit(q ServerQuery) bool {
	if d.sealed.Load() {
		d.rejected.Add(1)
		return false
	}
	d.inFlight.Add(1)
	if !d.runq.Push(q) {
		d.inFlight.Add(-1)
		d.rejected.Add(1)
		return false
	}
	d.submitted.Add(1)
	return true
}

// SubmitAll calls [Dispatcher.Submit] for each query and returns how many
// queries were accepted.
func (d *Dispatcher) SubmitAll(qs ...ServerQuery) int {
	var count int
	for _, q := range qs {
		if d.Submit(q) {
			count++
		}
	}
	return count
}

// SealAndWait stops accepting queries and blocks until every accepted
// query has completed and its outcome has been delivered.
//
// It is idempotent: concurrent and later callers block until the first
// call has completed and then return.
func (d *Dispatcher) SealAndWait() {
	d.sealOnce.Do(func() {
		t0 := d.cfg.TimeNow()
		d.sealed.Store(true)
		d.logger.Info("sealStart", slog.Int64("inFlight", d.inFlight.Load()), slog.Time("t", t0))

		d.runq.Close()
		d.workers.Wait()
		d.tasks.Wait()
		d.outcomes.Close()
		d.callbacks.Wait()

		stats := d.Stats()
		d.logger.Info(
			"sealDone",
			slog.Int64("failed", stats.Failed),
			slog.Int64("rejected", stats.Rejected),
			slog.Int64("submitted", stats.Submitted),
			slog.Int64("succeeded", stats.Succeeded),
			slog.Time("t0", t0),
			slog.Time("t", d.cfg.TimeNow()),
			slog.Int64("timedOut", stats.TimedOut),
		)
	})
}

// Close calls [Dispatcher.SealAndWait] and returns nil.
func (d *Dispatcher) Close() error {
	d.SealAndWait()
	return nil
}

// Stats returns a snapshot of the counters.
//
// Counters are read independently, so a snapshot taken while queries are
// running is not guaranteed to be mutually consistent.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		InFlight:  d.inFlight.Load(),
		Active:    d.active.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		TimedOut:  d.timedOut.Load(),
	}
}

// admitLoop starts queued queries as permits become available.
func (d *Dispatcher) admitLoop() {
	defer d.workers.Done()
	for {
		q, ok := d.runq.Pop()
		if !ok {
			return
		}
		// Acquire only fails when the context is done.
		runtimex.Assert(d.permits.Acquire(context.Background(), 1) == nil)
		d.tasks.Add(1)
		go d.run(q)
	}
}

// run executes an admitted query and queues its outcome.
func (d *Dispatcher) run(q ServerQuery) {
	defer d.tasks.Done()
	defer d.permits.Release(1)
	d.active.Add(1)
	defer d.active.Add(-1)

	spanID := NewSpanID()
	outcome := d.execute(q, withSpanID(d.logger, spanID))
	outcome.SpanID = spanID

	switch outcome.Kind() {
	case FailureNone:
		d.succeeded.Add(1)
	case FailureTimeout:
		d.timedOut.Add(1)
		d.failed.Add(1)
	default:
		d.failed.Add(1)
	}

	// The outcomes queue is closed only after all the tasks are done.
	runtimex.Assert(d.outcomes.Push(outcome))
}

// execute races the query against its deadline.
//
// When the deadline fires first, the connection is closed so that pending
// I/O fails, and the outcome becomes [FailureTimeout] once the query has
// unwound. A panic becomes [FailureInternal].
func (d *Dispatcher) execute(q ServerQuery, logger SLogger) (outcome Outcome) {
	t0 := d.cfg.TimeNow()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queryPanic", slog.Any("panic", r), slog.String("target", q.Target.String()))
			err := fmt.Errorf("panic: %v", r)
			outcome = Outcome{
				Target:   q.Target,
				Err:      &QueryError{Op: "query", Kind: FailureInternal, Err: err},
				ErrClass: d.cfg.ErrClassifier.Classify(err),
				Elapsed:  d.cfg.TimeNow().Sub(t0),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout())
	defer cancel()

	conn := NewConnection(d.cfg, q, logger)
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	outcome = conn.Query(ctx)
	if !outcome.OK() && ctx.Err() != nil {
		outcome.Err = &QueryError{Op: "query", Kind: FailureTimeout, Err: ErrTimeout}
		outcome.ErrClass = d.cfg.ErrClassifier.Classify(ctx.Err())
	}
	return outcome
}

// deliverLoop passes outcomes to the handler.
func (d *Dispatcher) deliverLoop() {
	defer d.callbacks.Done()
	for {
		outcome, ok := d.outcomes.Pop()
		if !ok {
			return
		}
		d.deliver(outcome)
	}
}

// deliver calls the handler, recovering and logging its panics.
func (d *Dispatcher) deliver(outcome Outcome) {
	defer d.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(
				"callbackPanic",
				slog.Any("panic", r),
				slog.String("spanID", outcome.SpanID),
				slog.String("target", outcome.Target.String()),
				slog.Time("t", d.cfg.TimeNow()),
			)
		}
	}()
	d.handler.HandleOutcome(outcome)
}
