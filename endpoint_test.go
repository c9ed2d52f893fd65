// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewEndpointFunc yields the DNS server endpoint and rejects unusable ones.
func TestNewEndpointFunc(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// endpoint is the configured endpoint.
		endpoint netip.AddrPort

		// wantErr indicates whether the stage should fail.
		wantErr bool
	}{
		{name: "IPv4", endpoint: netip.MustParseAddrPort("8.8.8.8:53")},
		{name: "IPv6", endpoint: netip.MustParseAddrPort("[2001:4860:4860::8888]:53")},
		{name: "zero value", endpoint: netip.AddrPort{}, wantErr: true},
		{name: "zero port", endpoint: netip.MustParseAddrPort("8.8.8.8:0"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := NewEndpointFunc(tt.endpoint)
			for range 2 {
				result, err := fn.Call(context.Background(), Unit{})
				if tt.wantErr {
					require.ErrorIs(t, err, ErrInvalidEndpoint)
					assert.Equal(t, netip.AddrPort{}, result)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, tt.endpoint, result)
			}
		})
	}
}
