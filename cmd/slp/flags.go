// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bassosimone/slp"
	"github.com/bassosimone/slp/internal/config"
)

// errPortGivenTwice indicates a -a address with a port combined with -p.
var errPortGivenTwice = errors.New("port given twice: use either -a host:port or -p")

// longAliases maps the long flag names to their short form.
var longAliases = map[string]string{
	"address": "a",
	"port":    "p",
	"silent":  "s",
	"timeout": "t",
}

// parseTimeout parses a whole number of seconds or a [time.Duration] string.
// The result must be positive.
func parseTimeout(raw string) (time.Duration, error) {
	var timeout time.Duration
	if seconds, err := strconv.Atoi(raw); err == nil {
		timeout = time.Duration(seconds) * time.Second
	} else {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: want seconds or a duration", raw)
		}
		timeout = value
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", raw)
	}
	return timeout, nil
}

// cliFlags holds the parsed command line.
type cliFlags struct {
	address         string
	admission       int
	callbackWorkers int
	configPath      string
	dnsProtocol     string
	dnsServer       string
	file            string
	format          string
	logFormat       string
	logLevel        string
	metricsAddr     string
	onlyOK          bool
	port            uint16
	protocolVersion int32
	silent          bool
	sqlite          string
	timeout         time.Duration
	version         bool
	workers         int

	// set contains the names of the flags given explicitly.
	set map[string]bool
}

// parseFlags parses args, returning the flags and the positional addresses.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	f := &cliFlags{timeout: slp.DefaultTimeout, set: map[string]bool{}}
	fs := flag.NewFlagSet("slp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: slp [flags] [address[:port] ...]\n\n")
		fmt.Fprintf(fs.Output(), "Queries the status of game servers using the Server List Ping protocol.\n")
		fmt.Fprintf(fs.Output(), "Without addresses and without -f, reads the addresses from the standard input.\n\n")
		fs.PrintDefaults()
	}

	setPort := func(raw string) error {
		port, err := config.ParsePort(raw)
		f.port = port
		return err
	}
	setTimeout := func(raw string) error {
		timeout, err := parseTimeout(raw)
		f.timeout = timeout
		return err
	}
	for _, name := range []string{"s", "silent"} {
		fs.BoolVar(&f.silent, name, false, "silent: print only the JSON payload, or an empty line on failure")
	}
	for _, name := range []string{"a", "address"} {
		fs.StringVar(&f.address, name, "", "server address, optionally followed by :port")
	}
	for _, name := range []string{"p", "port"} {
		fs.Func(name, fmt.Sprintf("default server port (default %d)", slp.DefaultPort), setPort)
	}
	for _, name := range []string{"t", "timeout"} {
		fs.Func(name, fmt.Sprintf("end-to-end timeout of each query, in seconds or as a duration such as 1500ms (default %d)",
			int(slp.DefaultTimeout/time.Second)), setTimeout)
	}
	fs.Func("protocol-version", fmt.Sprintf("protocol version in the handshake (default %d)", slp.DefaultProtocolVersion), func(raw string) error {
		value, err := strconv.ParseInt(raw, 10, 32)
		f.protocolVersion = int32(value)
		return err
	})
	fs.StringVar(&f.file, "f", "", `file listing one address per line ("-" for the standard input)`)
	fs.StringVar(&f.format, "format", config.FormatText, "output format: text, ndjson, or raw")
	fs.BoolVar(&f.onlyOK, "ok", false, "print only the successful queries")
	fs.StringVar(&f.sqlite, "sqlite", "", "also store the outcomes in this SQLite database")
	fs.IntVar(&f.admission, "admission", slp.DefaultAdmissionLimit, "maximum number of concurrently active queries")
	fs.IntVar(&f.workers, "workers", 0, "admission workers (0 means the number of CPUs)")
	fs.IntVar(&f.callbackWorkers, "callback-workers", 0, "outcome delivery workers (0 means one)")
	fs.StringVar(&f.configPath, "config", "", "YAML or TOML configuration file")
	fs.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn, or error")
	fs.StringVar(&f.logFormat, "log-format", "console", "log format: console or json")
	fs.StringVar(&f.dnsServer, "dns-server", "", "resolve hostnames using this DNS server instead of the system resolver")
	fs.StringVar(&f.dnsProtocol, "dns-protocol", "udp", "protocol used with -dns-server: udp or tcp")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while scanning")
	fs.BoolVar(&f.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		name := fl.Name
		if short, ok := longAliases[name]; ok {
			name = short
		}
		f.set[name] = true
	})
	return f, fs.Args(), nil
}

// apply overrides the cfg fields whose flags were given explicitly.
func (f *cliFlags) apply(cfg *config.Config) {
	if f.set["s"] {
		cfg.Silent = f.silent
	}
	if f.set["p"] {
		cfg.Port = f.port
	}
	if f.set["t"] {
		cfg.Timeout = config.Duration(f.timeout)
	}
	if f.set["protocol-version"] {
		cfg.ProtocolVersion = f.protocolVersion
	}
	if f.set["f"] {
		cfg.ServerList = f.file
	}
	if f.set["format"] {
		cfg.Format = f.format
	}
	if f.set["ok"] {
		cfg.OnlyOK = f.onlyOK
	}
	if f.set["sqlite"] {
		cfg.SQLite = f.sqlite
	}
	if f.set["admission"] {
		cfg.AdmissionLimit = f.admission
	}
	if f.set["workers"] {
		cfg.Workers = f.workers
	}
	if f.set["callback-workers"] {
		cfg.CallbackWorkers = f.callbackWorkers
	}
	if f.set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.set["log-format"] {
		cfg.LogFormat = f.logFormat
	}
	if f.set["dns-server"] {
		cfg.DNSServer = f.dnsServer
	}
	if f.set["dns-protocol"] {
		cfg.DNSProtocol = f.dnsProtocol
	}
	if f.set["metrics-addr"] {
		cfg.MetricsAddr = f.metricsAddr
	}
}

// loadConfig loads the -config file, or the defaults, and applies the flags.
func (f *cliFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// hasExplicitPort returns whether addr carries its own port.
func hasExplicitPort(addr string) bool {
	first, err := slp.ParseServerTarget(addr, 1)
	if err != nil {
		return false
	}
	second, err := slp.ParseServerTarget(addr, 2)
	return err == nil && first.Port == second.Port
}
