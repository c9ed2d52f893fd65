// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ParseServerTarget accepts the supported address forms.
func TestParseServerTarget(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// input is the string to parse.
		input string

		// want is the expected target.
		want ServerTarget
	}{
		{
			name:  "hostname without port",
			input: "mc.example.com",
			want:  ServerTarget{Address: "mc.example.com", Port: 25565},
		},
		{
			name:  "hostname with port",
			input: "mc.example.com:25566",
			want:  ServerTarget{Address: "mc.example.com", Port: 25566},
		},
		{
			name:  "surrounding whitespace",
			input: "  localhost:1234\t",
			want:  ServerTarget{Address: "localhost", Port: 1234},
		},
		{
			name:  "IPv4 literal",
			input: "192.0.2.1",
			want:  ServerTarget{Address: "192.0.2.1", Port: 25565},
		},
		{
			name:  "IPv4 literal with port",
			input: "192.0.2.1:7",
			want:  ServerTarget{Address: "192.0.2.1", Port: 7},
		},
		{
			name:  "bare IPv6 literal",
			input: "2001:db8::1",
			want:  ServerTarget{Address: "2001:db8::1", Port: 25565},
		},
		{
			name:  "bracketed IPv6 without port",
			input: "[2001:db8::1]",
			want:  ServerTarget{Address: "2001:db8::1", Port: 25565},
		},
		{
			name:  "bracketed IPv6 with port",
			input: "[2001:db8::1]:19132",
			want:  ServerTarget{Address: "2001:db8::1", Port: 19132},
		},
		{
			name:  "internationalized hostname",
			input: "bücher.example",
			want:  ServerTarget{Address: "xn--bcher-kva.example", Port: 25565},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServerTarget(tt.input, DefaultPort)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ParseServerTarget rejects invalid addresses.
func TestParseServerTargetErrors(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		":25565",
		"host:0",
		"host:65536",
		"host:port",
		"[2001:db8::1",
		"a:b:c",
		"bad host name with spaces",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseServerTarget(input, DefaultPort)
			require.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

// ParseServerTarget uses the given default port.
func TestParseServerTargetDefaultPort(t *testing.T) {
	got, err := ParseServerTarget("localhost", 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), got.Port)

	_, err = ParseServerTarget("localhost", 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

// String joins address and port, bracketing IPv6 literals.
func TestServerTargetString(t *testing.T) {
	assert.Equal(t, "localhost:25565", ServerTarget{Address: "localhost", Port: 25565}.String())
	assert.Equal(t, "[::1]:25565", ServerTarget{Address: "::1", Port: 25565}.String())
}

// NewServerQuery fills in the defaults and timeout() handles unset values.
func TestNewServerQuery(t *testing.T) {
	target := ServerTarget{Address: "localhost", Port: 25565}
	q := NewServerQuery(target)
	assert.Equal(t, target, q.Target)
	assert.Equal(t, DefaultTimeout, q.Timeout)
	assert.Equal(t, int32(-1), q.ProtocolVersion)

	assert.Equal(t, DefaultTimeout, ServerQuery{}.timeout())
	assert.Equal(t, DefaultTimeout, ServerQuery{Timeout: -time.Second}.timeout())
	assert.Equal(t, time.Second, ServerQuery{Timeout: time.Second}.timeout())
}
