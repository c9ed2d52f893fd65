// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer starts a DNS server on 127.0.0.1 using the given protocol.
//
// It answers mc.example.com with 192.0.2.7 (A) and 2001:db8::7 (AAAA),
// v6.example.com with 2001:db8::8 (AAAA) and no A records, and any other
// name with NXDOMAIN.
func startDNSServer(t *testing.T, protocol string) netip.AddrPort {
	zone := map[string]map[uint16]net.IP{
		"mc.example.com.": {
			dns.TypeA:    net.IPv4(192, 0, 2, 7),
			dns.TypeAAAA: net.ParseIP("2001:db8::7"),
		},
		"v6.example.com.": {
			dns.TypeAAAA: net.ParseIP("2001:db8::8"),
		},
	}
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, query *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(query)
		question := query.Question[0]
		records, found := zone[question.Name]
		if !found {
			resp.Rcode = dns.RcodeNameError
			w.WriteMsg(resp)
			return
		}
		hdr := dns.RR_Header{Name: question.Name, Rrtype: question.Qtype, Class: dns.ClassINET, Ttl: 60}
		if ip, ok := records[question.Qtype]; ok {
			switch question.Qtype {
			case dns.TypeA:
				resp.Answer = append(resp.Answer, &dns.A{Hdr: hdr, A: ip})
			case dns.TypeAAAA:
				resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: hdr, AAAA: ip})
			}
		}
		w.WriteMsg(resp)
	})

	server := &dns.Server{Handler: handler}
	var address string
	switch protocol {
	case "udp":
		pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		server.PacketConn = pconn
		address = pconn.LocalAddr().String()
	default:
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		server.Listener = listener
		address = listener.Addr().String()
	}

	started := make(chan struct{})
	server.NotifyStartedFunc = func() { close(started) }
	go server.ActivateAndServe()
	<-started
	t.Cleanup(func() { server.Shutdown() })
	return netip.MustParseAddrPort(address)
}

// NewDNSResolver accepts udp and tcp only.
func TestNewDNSResolver(t *testing.T) {
	server := netip.MustParseAddrPort("8.8.8.8:53")
	for _, protocol := range []string{"udp", "tcp"} {
		r, err := NewDNSResolver(NewConfig(), protocol, server, DefaultSLogger())
		require.NoError(t, err)
		assert.Equal(t, server, r.Server())
	}

	_, err := NewDNSResolver(NewConfig(), "https", server, DefaultSLogger())
	require.ErrorIs(t, err, ErrUnsupportedDNSProtocol)
}

// LookupNetIP resolves names using the configured server.
func TestDNSResolverLookupNetIP(t *testing.T) {
	for _, protocol := range []string{"udp", "tcp"} {
		t.Run(protocol, func(t *testing.T) {
			logger, records := newCapturingLogger()
			server := startDNSServer(t, protocol)
			r, err := NewDNSResolver(NewConfig(), protocol, server, logger)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			addrs, err := r.LookupNetIP(ctx, "ip", "mc.example.com")
			require.NoError(t, err)
			assert.Equal(t, []netip.Addr{
				netip.MustParseAddr("192.0.2.7"),
				netip.MustParseAddr("2001:db8::7"),
			}, addrs)

			messages := records.Messages()
			assert.Contains(t, messages, "connectDone")
			assert.Contains(t, messages, "dnsExchangeStart")
			assert.Contains(t, messages, "dnsQuery")
			assert.Contains(t, messages, "dnsResponse")
			assert.Contains(t, messages, "dnsExchangeDone")
			assert.Contains(t, messages, "closeDone")
			for i, message := range messages {
				if message == "connectDone" {
					assert.Equal(t, "mc.example.com", recordAttrs(records.Records()[i])["serverName"].String())
				}
			}

			_, err = r.LookupNetIP(ctx, "ip4", "unknown.example.com")
			require.Error(t, err)
		})
	}
}

// The network selects the record types, so IPv6-only servers resolve.
func TestDNSResolverLookupNetIPRecordTypes(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// network is the lookup network.
		network string

		// host is the name to resolve.
		host string

		// want are the expected addresses, nil when an error is expected.
		want []netip.Addr
	}{
		{
			name:    "IPv4 only",
			network: "ip4",
			host:    "mc.example.com",
			want:    []netip.Addr{netip.MustParseAddr("192.0.2.7")},
		},
		{
			name:    "IPv6 only",
			network: "ip6",
			host:    "mc.example.com",
			want:    []netip.Addr{netip.MustParseAddr("2001:db8::7")},
		},
		{
			name:    "name without A records",
			network: "ip",
			host:    "v6.example.com",
			want:    []netip.Addr{netip.MustParseAddr("2001:db8::8")},
		},
		{
			name:    "name without A records and ip4",
			network: "ip4",
			host:    "v6.example.com",
		},
		{
			name:    "unknown name",
			network: "ip",
			host:    "unknown.example.com",
		},
	}

	server := startDNSServer(t, "udp")
	r, err := NewDNSResolver(NewConfig(), "udp", server, DefaultSLogger())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			addrs, err := r.LookupNetIP(ctx, tt.network, tt.host)
			if tt.want == nil {
				require.Error(t, err)
				assert.Empty(t, addrs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addrs)
		})
	}
}

// LookupNetIP returns IP literals without querying.
func TestDNSResolverLookupNetIPLiteral(t *testing.T) {
	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			t.Fatal("should not dial")
			return nil, nil
		},
	}
	r, err := NewDNSResolver(cfg, "udp", netip.MustParseAddrPort("8.8.8.8:53"), DefaultSLogger())
	require.NoError(t, err)

	addrs, err := r.LookupNetIP(context.Background(), "ip", "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.1")}, addrs)
}

// LookupNetIP rejects unknown networks and reports dial failures.
func TestDNSResolverLookupNetIPErrors(t *testing.T) {
	wantErr := errors.New("network unreachable")
	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "8.8.8.8:53", address)
			return nil, wantErr
		},
	}
	r, err := NewDNSResolver(cfg, "tcp", netip.MustParseAddrPort("8.8.8.8:53"), DefaultSLogger())
	require.NoError(t, err)

	_, err = r.LookupNetIP(context.Background(), "tcp", "mc.example.com")
	require.ErrorContains(t, err, "unsupported network")

	_, err = r.LookupNetIP(context.Background(), "ip6", "mc.example.com")
	require.ErrorIs(t, err, wantErr)

	_, err = r.LookupNetIP(context.Background(), "ip", "mc.example.com")
	require.ErrorIs(t, err, wantErr)
}

// LookupNetIP fails without dialing when the server endpoint is unusable.
func TestDNSResolverInvalidServer(t *testing.T) {
	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			t.Fatal("should not dial")
			return nil, nil
		},
	}
	r, err := NewDNSResolver(cfg, "udp", netip.AddrPort{}, DefaultSLogger())
	require.NoError(t, err)

	_, err = r.LookupNetIP(context.Background(), "ip", "mc.example.com")
	require.ErrorIs(t, err, ErrInvalidEndpoint)
}

// A DNSResolver configured in Config resolves the query target.
func TestConnectionUsesDNSResolver(t *testing.T) {
	dnsServer := startDNSServer(t, "udp")
	cfg := NewConfig()
	resolver, err := NewDNSResolver(cfg, "udp", dnsServer, DefaultSLogger())
	require.NoError(t, err)
	cfg.Resolver = resolver

	var dialed []string
	dialer := cfg.Dialer
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			if network == "udp" {
				return dialer.DialContext(ctx, network, address)
			}
			dialed = append(dialed, address)
			return newScriptedConn(encodeStatusResponse("{}")), nil
		},
	}

	query := NewServerQuery(ServerTarget{Address: "mc.example.com", Port: 25565})
	outcome := NewConnection(cfg, query, DefaultSLogger()).Query(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, []string{"192.0.2.7:25565"}, dialed)
}
