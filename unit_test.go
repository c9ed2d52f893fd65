// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// All Unit values are equal.
func TestUnit(t *testing.T) {
	var u Unit
	assert.Equal(t, Unit{}, u)
}
