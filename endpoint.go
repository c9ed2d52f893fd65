// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"net/netip"
)

// ErrInvalidEndpoint indicates a zero or port-less [netip.AddrPort].
var ErrInvalidEndpoint = errors.New("slp: invalid endpoint")

// NewEndpointFunc returns the first stage of the [*DNSResolver] pipeline,
// which yields the DNS server endpoint.
//
// The stage fails with [ErrInvalidEndpoint] when the endpoint has no
// valid address or a zero port, so no dial is attempted.
func NewEndpointFunc(endpoint netip.AddrPort) Func[Unit, netip.AddrPort] {
	return FuncAdapter[Unit, netip.AddrPort](func(ctx context.Context, _ Unit) (netip.AddrPort, error) {
		if !endpoint.IsValid() || endpoint.Port() == 0 {
			return netip.AddrPort{}, ErrInvalidEndpoint
		}
		return endpoint, nil
	})
}
