// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Resolver abstracts the [*net.Resolver] behavior.
//
// [*DNSResolver] implements this interface using a custom DNS server.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Config holds the dependencies shared by connections and dispatchers.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig]. Fields must
// not be modified once a [*Dispatcher] using the config exists.
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// Resolver maps server hostnames to IP addresses.
	//
	// Set by [NewConfig] to [net.DefaultResolver].
	Resolver Resolver

	// ErrClassifier classifies errors for structured logging and [Outcome.ErrClass].
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		Resolver:      net.DefaultResolver,
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}
