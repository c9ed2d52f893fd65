// SPDX-License-Identifier: GPL-3.0-or-later

package output

import (
	"encoding/json"
	"io"

	"github.com/bassosimone/slp"
)

// Record is the NDJSON representation of an outcome.
type Record struct {
	Target    string  `json:"target"`
	Address   string  `json:"address"`
	Port      uint16  `json:"port"`
	OK        bool    `json:"ok"`
	Status    string  `json:"status,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorKind string  `json:"errorKind"`
	ErrClass  string  `json:"errClass,omitempty"`
	SpanID    string  `json:"spanID,omitempty"`
	ElapsedMs float64 `json:"elapsedMs"`
}

// NewRecord converts outcome to a [Record].
//
// The status payload is kept as a string since the server may send a
// document that is not valid JSON.
func NewRecord(outcome slp.Outcome) Record {
	return Record{
		Target:    outcome.Target.String(),
		Address:   outcome.Target.Address,
		Port:      outcome.Target.Port,
		OK:        outcome.OK(),
		Status:    outcome.JSON,
		Error:     outcome.Reason(),
		ErrorKind: outcome.Kind().String(),
		ErrClass:  outcome.ErrClass,
		SpanID:    outcome.SpanID,
		ElapsedMs: float64(outcome.Elapsed.Microseconds()) / 1000,
	}
}

// NDJSONWriter writes one JSON [Record] per line.
type NDJSONWriter struct {
	lineWriter
}

var _ Writer = &NDJSONWriter{}

// NewNDJSONWriter returns a [*NDJSONWriter] writing to w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{lineWriter{w: w}}
}

// Write implements [Writer].
func (nw *NDJSONWriter) Write(outcome slp.Outcome) error {
	data, err := json.Marshal(NewRecord(outcome))
	if err != nil {
		return err
	}
	return nw.writeLine(data)
}

// RawWriter writes the status payload of each outcome on its own line,
// and an empty line for each failure.
type RawWriter struct {
	lineWriter
}

var _ Writer = &RawWriter{}

// NewRawWriter returns a [*RawWriter] writing to w.
func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{lineWriter{w: w}}
}

// Write implements [Writer].
func (rw *RawWriter) Write(outcome slp.Outcome) error {
	return rw.writeLine([]byte(outcome.JSON))
}
