// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewSpanID returns unique UUIDv7 strings.
func TestNewSpanID(t *testing.T) {
	const count = 100
	seen := make(map[string]bool, count)

	for range count {
		spanID := NewSpanID()

		parsed, err := uuid.Parse(spanID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())

		require.False(t, seen[spanID], "duplicate span ID generated: %s", spanID)
		seen[spanID] = true
	}
}
