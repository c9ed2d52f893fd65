// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the slp command configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/slp"
	"github.com/bassosimone/slp/internal/logsink"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText   = "text"
	FormatNDJSON = "ndjson"
	FormatRaw    = "raw"
)

// ErrInvalid indicates a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a [time.Duration] written as a string such as "5s" or "250ms".
type Duration time.Duration

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	value, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(value)
	return nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the slp command configuration.
//
// Every field has a command line flag counterpart that overrides it.
type Config struct {
	// Servers are addresses to query, each optionally followed by :port.
	Servers []string `yaml:"servers" toml:"servers"`

	// ServerList is a file listing one address per line; "-" is the standard input.
	ServerList string `yaml:"server_list" toml:"server_list"`

	// Port is the port used for addresses without an explicit port.
	Port uint16 `yaml:"port" toml:"port"`

	// Timeout is the end-to-end deadline of each query.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// ProtocolVersion is announced in the handshake.
	ProtocolVersion int32 `yaml:"protocol_version" toml:"protocol_version"`

	// Format selects the output format.
	Format string `yaml:"format" toml:"format"`

	// OnlyOK suppresses the failed outcomes from the output.
	OnlyOK bool `yaml:"only_ok" toml:"only_ok"`

	// Silent suppresses the logs and prints only the JSON payloads.
	Silent bool `yaml:"silent" toml:"silent"`

	// SQLite is the path of an optional SQLite results database.
	SQLite string `yaml:"sqlite" toml:"sqlite"`

	// AdmissionLimit bounds the concurrently active queries; zero selects the default.
	AdmissionLimit int `yaml:"admission_limit" toml:"admission_limit"`

	// Workers is the number of admission workers; zero selects the default.
	Workers int `yaml:"workers" toml:"workers"`

	// CallbackWorkers is the number of outcome delivery workers; zero selects the default.
	CallbackWorkers int `yaml:"callback_workers" toml:"callback_workers"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// DNSServer is an optional DNS server address, with or without port.
	DNSServer string `yaml:"dns_server" toml:"dns_server"`

	// DNSProtocol is udp or tcp.
	DNSProtocol string `yaml:"dns_protocol" toml:"dns_protocol"`

	// MetricsAddr is an optional listen address for the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Port:            slp.DefaultPort,
		Timeout:         Duration(slp.DefaultTimeout),
		ProtocolVersion: slp.DefaultProtocolVersion,
		Format:          FormatText,
		LogLevel:        "warn",
		LogFormat:       logsink.FormatConsole,
		DNSProtocol:     "udp",
	}
}

// applyDefaults fills in the fields a file may have cleared.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}
	if c.DNSProtocol == "" {
		c.DNSProtocol = defaults.DNSProtocol
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
}

// Validate checks the configuration and returns an error wrapping
// [ErrInvalid] describing the first problem found.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("%w: port must be positive", ErrInvalid)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}
	switch c.Format {
	case FormatText, FormatNDJSON, FormatRaw:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalid, c.Format)
	}
	if c.AdmissionLimit < 0 || c.Workers < 0 || c.CallbackWorkers < 0 {
		return fmt.Errorf("%w: admission_limit, workers, and callback_workers must not be negative", ErrInvalid)
	}
	if _, ok := logsink.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	if _, ok := logsink.ParseFormat(c.LogFormat); !ok {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat)
	}
	switch c.DNSProtocol {
	case "udp", "tcp":
	default:
		return fmt.Errorf("%w: unknown DNS protocol %q", ErrInvalid, c.DNSProtocol)
	}
	if _, err := c.DNSEndpoint(); err != nil {
		return err
	}
	return nil
}

// DNSEndpoint parses [Config.DNSServer], using port 53 when none is given.
//
// It returns the zero value when no DNS server is configured.
func (c *Config) DNSEndpoint() (netip.AddrPort, error) {
	server := strings.TrimSpace(c.DNSServer)
	if server == "" {
		return netip.AddrPort{}, nil
	}
	if endpoint, err := netip.ParseAddrPort(server); err == nil {
		return endpoint, nil
	}
	addr, err := netip.ParseAddr(strings.Trim(server, "[]"))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: dns_server %q is not an IP address", ErrInvalid, c.DNSServer)
	}
	return netip.AddrPortFrom(addr, 53), nil
}

// Options returns the dispatcher options.
func (c *Config) Options() slp.Options {
	return slp.Options{
		AdmissionLimit:  c.AdmissionLimit,
		Workers:         c.Workers,
		CallbackWorkers: c.CallbackWorkers,
	}
}

// Query returns the [slp.ServerQuery] for target.
func (c *Config) Query(target slp.ServerTarget) slp.ServerQuery {
	return slp.ServerQuery{
		Target:          target,
		Timeout:         time.Duration(c.Timeout),
		ProtocolVersion: c.ProtocolVersion,
	}
}

// ParsePort parses a decimal port number in the 1-65535 range.
func ParsePort(raw string) (uint16, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("%w: invalid port %q", ErrInvalid, raw)
	}
	return uint16(value), nil
}
