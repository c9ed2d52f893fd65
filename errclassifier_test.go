// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
)

// DefaultErrClassifier maps errors to errclass labels.
func TestDefaultErrClassifier(t *testing.T) {
	tests := []struct {
		// err is the error to classify.
		err error

		// want is the expected class.
		want string
	}{
		{err: nil, want: ""},
		{err: context.DeadlineExceeded, want: errclass.ETIMEDOUT},
		{err: errors.New("unknown error"), want: errclass.EGENERIC},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultErrClassifier.Classify(tt.err))
	}
}

// ErrClassifierFunc adapts a function.
func TestErrClassifierFunc(t *testing.T) {
	classifier := ErrClassifierFunc(func(err error) string {
		if errors.Is(err, ErrSocketClosed) {
			return "ESOCKETCLOSED"
		}
		return "EOTHER"
	})
	assert.Equal(t, "ESOCKETCLOSED", classifier.Classify(ErrSocketClosed))
	assert.Equal(t, "EOTHER", classifier.Classify(ErrTimeout))
}
