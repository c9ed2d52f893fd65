// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

const (
	// DefaultPort is the well-known port of the status protocol.
	DefaultPort uint16 = 25565

	// DefaultTimeout is the end-to-end deadline used when a query has none.
	DefaultTimeout = 5 * time.Second

	// DefaultProtocolVersion means "unknown/any" in the handshake.
	DefaultProtocolVersion int32 = -1
)

// ErrInvalidTarget indicates a server address that cannot be parsed.
var ErrInvalidTarget = errors.New("slp: invalid server target")

// ServerTarget is the address and port of a server to query.
//
// The zero value is not a valid target. Values are immutable once constructed.
type ServerTarget struct {
	// Address is a hostname or an IP address literal.
	Address string

	// Port is the TCP port.
	Port uint16
}

// String returns the host:port representation of the target.
func (t ServerTarget) String() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(int(t.Port)))
}

// ParseServerTarget parses s as host, host:port, [ipv6]:port, or a bare
// IPv6 literal, using defaultPort when no port is given.
//
// Leading and trailing whitespace is ignored. Hostnames are converted to
// their ASCII (IDNA) form; IP literals are kept as written.
func ParseServerTarget(s string, defaultPort uint16) (ServerTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ServerTarget{}, fmt.Errorf("%w: empty address", ErrInvalidTarget)
	}

	host, port := s, defaultPort
	literal := s
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		literal = s[1 : len(s)-1]
	}
	if addr, err := netip.ParseAddr(literal); err == nil {
		// bare IPv4 or IPv6 literal
		host = addr.String()
	} else {
		h, p, err := net.SplitHostPort(s)
		switch {
		case err == nil:
			host = h
			if p != "" {
				value, err := parsePort(p)
				if err != nil {
					return ServerTarget{}, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, s, err)
				}
				port = value
			}
		case strings.Contains(s, "[") || strings.Count(s, ":") > 1:
			return ServerTarget{}, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, s, err)
		}
	}

	if host == "" {
		return ServerTarget{}, fmt.Errorf("%w: %q: empty host", ErrInvalidTarget, s)
	}
	if port == 0 {
		return ServerTarget{}, fmt.Errorf("%w: %q: port must not be zero", ErrInvalidTarget, s)
	}
	if _, err := netip.ParseAddr(host); err != nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return ServerTarget{}, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, s, err)
		}
		host = ascii
	}
	return ServerTarget{Address: host, Port: port}, nil
}

func parsePort(s string) (uint16, error) {
	value, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(value), nil
}

// ServerQuery describes a single status query attempt.
//
// A query is attempted exactly once and must not be mutated after it
// has been submitted to a [*Dispatcher].
type ServerQuery struct {
	// Target is the server to query.
	Target ServerTarget

	// Timeout is the end-to-end deadline covering resolution, connect,
	// and the protocol exchange. Non-positive values mean [DefaultTimeout].
	Timeout time.Duration

	// ProtocolVersion is announced in the handshake.
	//
	// Set by [NewServerQuery] to [DefaultProtocolVersion].
	ProtocolVersion int32
}

// NewServerQuery returns a [ServerQuery] for target using [DefaultTimeout]
// and [DefaultProtocolVersion].
func NewServerQuery(target ServerTarget) ServerQuery {
	return ServerQuery{
		Target:          target,
		Timeout:         DefaultTimeout,
		ProtocolVersion: DefaultProtocolVersion,
	}
}

func (q ServerQuery) timeout() time.Duration {
	if q.Timeout <= 0 {
		return DefaultTimeout
	}
	return q.Timeout
}
