// SPDX-License-Identifier: GPL-3.0-or-later

// Package logsink renders [log/slog] records on a dedicated goroutine.
//
// Producers never perform I/O: [*Sink.Handle] and [*Sink.Log] append the
// record to an unbounded queue drained by a single consumer goroutine that
// renders it with zerolog. This keeps the query goroutines off the terminal.
package logsink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// entry is a queued record.
type entry struct {
	attrs   []slog.Attr
	level   slog.Level
	message string
	time    time.Time
}

// core is the state shared by a [*Sink] and the handlers derived from it.
type core struct {
	cond    *sync.Cond
	done    chan struct{}
	dropped atomic.Int64
	level   slog.Level
	logger  zerolog.Logger
	mu      sync.Mutex
	queue   []entry
	running bool
	silent  atomic.Bool
}

// Sink is an asynchronous [slog.Handler].
//
// Records handled before [Sink.Start] or after [Sink.Stop] are dropped, as
// are all records while the sink is silent. The zero value is invalid;
// construct using [New].
type Sink struct {
	attrs  []slog.Attr
	core   *core
	prefix string
}

var _ slog.Handler = &Sink{}

// New returns a new stopped [*Sink] using cfg.
func New(cfg Config) *Sink {
	var logger zerolog.Logger
	switch cfg.Format {
	case FormatJSON:
		logger = zerolog.New(cfg.Out)
	default:
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        cfg.Out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339Nano,
		})
	}
	c := &core{level: cfg.Level, logger: logger}
	c.cond = sync.NewCond(&c.mu)
	return &Sink{core: c}
}

// Start starts the consumer goroutine. Calling Start on a running sink
// has no effect.
func (s *Sink) Start() {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.done = make(chan struct{})
	go c.consume(c.done)
}

// Stop renders the queued records and stops the consumer goroutine.
// Calling Stop on a stopped sink has no effect.
func (s *Sink) Stop() {
	c := s.core
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	done := c.done
	c.cond.Broadcast()
	c.mu.Unlock()
	<-done
}

// SetSilent enables or disables dropping all records.
func (s *Sink) SetSilent(silent bool) {
	s.core.silent.Store(silent)
}

// Dropped returns the number of records dropped because the sink was
// stopped or silent.
func (s *Sink) Dropped() int64 {
	return s.core.dropped.Load()
}

// Log queues a plain message at info level, or at error level when isErr is
// true, regardless of the configured minimum level.
func (s *Sink) Log(message string, isErr bool) {
	level := slog.LevelInfo
	if isErr {
		level = slog.LevelError
	}
	s.core.push(entry{level: level, message: message, time: time.Now()})
}

// Enabled implements [slog.Handler].
func (s *Sink) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= s.core.level && !s.core.silent.Load()
}

// Handle implements [slog.Handler].
func (s *Sink) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]slog.Attr, 0, len(s.attrs)+record.NumAttrs())
	attrs = append(attrs, s.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, s.qualify(attr))
		return true
	})
	s.core.push(entry{attrs: attrs, level: record.Level, message: record.Message, time: record.Time})
	return nil
}

// WithAttrs implements [slog.Handler].
func (s *Sink) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &Sink{core: s.core, prefix: s.prefix}
	out.attrs = append(out.attrs, s.attrs...)
	for _, attr := range attrs {
		out.attrs = append(out.attrs, s.qualify(attr))
	}
	return out
}

// WithGroup implements [slog.Handler].
func (s *Sink) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return &Sink{attrs: s.attrs, core: s.core, prefix: s.prefix + name + "."}
}

func (s *Sink) qualify(attr slog.Attr) slog.Attr {
	if s.prefix != "" {
		attr.Key = s.prefix + attr.Key
	}
	return attr
}

func (c *core) push(e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.silent.Load() {
		c.dropped.Add(1)
		return
	}
	c.queue = append(c.queue, e)
	c.cond.Signal()
}

// consume renders entries until the sink is stopped and the queue is empty.
func (c *core) consume(done chan struct{}) {
	defer close(done)
	for {
		c.mu.Lock()
		for len(c.queue) <= 0 && c.running {
			c.cond.Wait()
		}
		batch := c.queue
		c.queue = nil
		stop := !c.running
		c.mu.Unlock()

		for _, e := range batch {
			c.render(e)
		}
		if stop && len(batch) <= 0 {
			return
		}
	}
}

func (c *core) render(e entry) {
	event := c.logger.WithLevel(zerologLevel(e.level)).Time(zerolog.TimestampFieldName, e.time)
	for _, attr := range e.attrs {
		event = appendAttr(event, attr.Key, attr.Value.Resolve())
	}
	event.Msg(e.message)
}

func appendAttr(event *zerolog.Event, key string, value slog.Value) *zerolog.Event {
	switch value.Kind() {
	case slog.KindString:
		return event.Str(key, value.String())
	case slog.KindInt64:
		return event.Int64(key, value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, value.Float64())
	case slog.KindBool:
		return event.Bool(key, value.Bool())
	case slog.KindDuration:
		return event.Dur(key, value.Duration())
	case slog.KindTime:
		return event.Time(key, value.Time())
	case slog.KindGroup:
		for _, attr := range value.Group() {
			event = appendAttr(event, key+"."+attr.Key, attr.Value.Resolve())
		}
		return event
	default:
		switch v := value.Any().(type) {
		case nil:
			return event.Interface(key, nil)
		case error:
			return event.Str(key, v.Error())
		default:
			return event.Interface(key, v)
		}
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
