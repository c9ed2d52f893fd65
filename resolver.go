// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/dnsoverstream"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
)

// ErrUnsupportedDNSProtocol indicates a DNS protocol other than "udp" or "tcp".
var ErrUnsupportedDNSProtocol = errors.New("slp: unsupported DNS protocol")

// NewDNSResolver returns a [*DNSResolver] using the given server.
//
// The protocol is either "udp" or "tcp". The logger receives the dial,
// I/O, and DNS exchange events of every lookup.
func NewDNSResolver(cfg *Config, protocol string, server netip.AddrPort, logger SLogger) (*DNSResolver, error) {
	runtimex.Assert(cfg != nil)
	switch protocol {
	case "udp", "tcp":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDNSProtocol, protocol)
	}
	return &DNSResolver{cfg: cfg, logger: logger, protocol: protocol, server: server}, nil
}

// DNSResolver is a [Resolver] querying a specific DNS server rather than
// the system resolver.
//
// Each lookup dials a new connection to the server per record type, sends
// a single query, and closes the connection. IPv4 addresses come first.
type DNSResolver struct {
	cfg      *Config
	logger   SLogger
	protocol string
	server   netip.AddrPort
}

var _ Resolver = &DNSResolver{}

// Server returns the DNS server endpoint.
func (r *DNSResolver) Server() netip.AddrPort {
	return r.server
}

// LookupNetIP implements [Resolver].
//
// The network selects the record types: "ip" queries A and AAAA, "ip4"
// only A, and "ip6" only AAAA. IP address literals are returned without
// sending any query. The lookup succeeds when any record type yields
// addresses.
func (r *DNSResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	var qtypes []uint16
	switch network {
	case "ip":
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		return nil, fmt.Errorf("slp: DNSResolver: unsupported network %q", network)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}

	var (
		addrs []netip.Addr
		errs  []error
	)
	for _, qtype := range qtypes {
		found, err := r.lookup(ctx, host, qtype)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		addrs = append(addrs, found...)
	}
	if len(addrs) > 0 {
		return addrs, nil
	}
	return nil, errors.Join(errs...)
}

// lookup queries the records of type qtype for host on a new connection.
func (r *DNSResolver) lookup(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	pipeline := Compose4(
		NewEndpointFunc(r.server),
		NewConnectFunc(r.cfg, r.protocol, host, r.logger),
		NewObserveConnFunc(r.cfg, r.logger),
		NewCancelWatchFunc(),
	)
	conn, err := pipeline.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := r.exchange(ctx, conn, host, qtype)
	if err != nil {
		return nil, err
	}
	var records []string
	if qtype == dns.TypeAAAA {
		records, err = resp.RecordsAAAA()
	} else {
		records, err = resp.RecordsA()
	}
	if err != nil {
		return nil, err
	}

	addrs := make([]netip.Addr, 0, len(records))
	for _, record := range records {
		addr, err := netip.ParseAddr(record)
		if err != nil {
			return nil, fmt.Errorf("slp: DNSResolver: invalid %s record %q: %w", dns.TypeToString[qtype], record, err)
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) <= 0 {
		return nil, fmt.Errorf("slp: DNSResolver: no %s records for %q", dns.TypeToString[qtype], host)
	}
	return addrs, nil
}

// exchange sends a qtype query for name over conn using the configured protocol.
func (r *DNSResolver) exchange(ctx context.Context, conn net.Conn, name string, qtype uint16) (*dnscodec.Response, error) {
	query := dnscodec.NewQuery(name, qtype)
	t0 := r.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	lc := newDNSExchangeLogContext(r.cfg, r.logger, conn, r.protocol)
	unspec := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

	lc.logStart(t0, deadline, name)
	var (
		resp *dnscodec.Response
		err  error
	)
	switch r.protocol {
	case "udp":
		txp := minest.NewDNSOverUDPTransport(connOnlyDialer{}, unspec)
		txp.ObserveRawQuery = lc.observeQuery
		txp.ObserveRawResponse = lc.observeResponse
		resp, err = txp.ExchangeWithConn(ctx, conn, query)

	default:
		txp := dnsoverstream.NewTransport(dnsoverstream.NewStreamOpenerDialerTCP(connOnlyDialer{}), unspec)
		txp.ObserveRawQuery = lc.observeQuery
		txp.ObserveRawResponse = lc.observeResponse
		resp, err = txp.ExchangeWithStreamOpener(ctx, dnsoverstream.NewTCPStreamOpener(conn), query)
	}
	lc.logDone(t0, deadline, name, err)
	return resp, err
}
