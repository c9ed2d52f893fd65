// SPDX-License-Identifier: GPL-3.0-or-later

// Package output writes query outcomes in the formats supported by slp.
package output

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bassosimone/slp"
)

// ErrUnknownFormat indicates an output format that [New] does not support.
var ErrUnknownFormat = errors.New("unknown output format")

// Writer writes outcomes.
//
// Implementations are safe for concurrent use, so a single writer may
// serve several dispatcher callback workers.
type Writer interface {
	Write(outcome slp.Outcome) error
	Close() error
}

// New returns the writer for format: "text", "ndjson", or "raw".
//
// The color flag only affects the text format.
func New(format string, w io.Writer, color bool) (Writer, error) {
	switch format {
	case "text":
		return NewTextWriter(w, color), nil
	case "ndjson":
		return NewNDJSONWriter(w), nil
	case "raw":
		return NewRawWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// OnlyOK returns a [Writer] passing only the successful outcomes to w.
func OnlyOK(w Writer) Writer {
	return &onlyOKWriter{w}
}

type onlyOKWriter struct {
	Writer
}

func (w *onlyOKWriter) Write(outcome slp.Outcome) error {
	if !outcome.OK() {
		return nil
	}
	return w.Writer.Write(outcome)
}

// Tee returns a [Writer] passing each outcome to all the writers.
//
// Write and Close visit every writer and join their errors.
func Tee(writers ...Writer) Writer {
	return teeWriter(writers)
}

type teeWriter []Writer

func (t teeWriter) Write(outcome slp.Outcome) error {
	var errs []error
	for _, w := range t {
		errs = append(errs, w.Write(outcome))
	}
	return errors.Join(errs...)
}

func (t teeWriter) Close() error {
	var errs []error
	for _, w := range t {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// lineWriter serializes whole lines to an [io.Writer].
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) writeLine(line []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	line = append(line, '\n')
	_, err := lw.w.Write(line)
	return err
}

// Close implements [Writer]. The underlying writer is owned by the caller.
func (lw *lineWriter) Close() error {
	return nil
}
