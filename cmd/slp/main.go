// SPDX-License-Identifier: GPL-3.0-or-later

// Command slp queries the status of many game servers concurrently using
// the Server List Ping protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bassosimone/slp"
	"github.com/bassosimone/slp/internal/config"
	"github.com/bassosimone/slp/internal/logsink"
	"github.com/bassosimone/slp/internal/metrics"
	"github.com/bassosimone/slp/internal/output"
	"github.com/bassosimone/slp/internal/rlimit"
	"github.com/bassosimone/slp/internal/serverlist"
)

// version is overridden at build time using -ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK        = 0
	exitNoSuccess = 1
	exitUsage     = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command and returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, addrs, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}
	if flags.version {
		fmt.Fprintf(stdout, "slp %s\n", version)
		return exitOK
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "slp: %s\n", err)
		return exitUsage
	}

	sink := newSink(cfg, stderr)
	sink.Start()
	defer sink.Stop()
	logger := slog.New(sink)

	targets, err := collectTargets(cfg, flags, addrs, stdin)
	if err != nil {
		sink.Log(err.Error(), true)
		return exitUsage
	}

	writer, err := newWriter(cfg, stdout)
	if err != nil {
		sink.Log(err.Error(), true)
		return exitUsage
	}

	slpCfg := slp.NewConfig()
	if err := configureResolver(slpCfg, cfg, logger); err != nil {
		writer.Close()
		sink.Log(err.Error(), true)
		return exitUsage
	}

	admission := cfg.AdmissionLimit
	if admission <= 0 {
		admission = slp.DefaultAdmissionLimit
	}
	if limit, err := rlimit.Raise(rlimit.Needed(admission)); err != nil {
		logger.Warn("rlimitRaiseFailed", slog.Any("err", err))
	} else {
		logger.Debug("rlimit", slog.Uint64("soft", limit.Soft), slog.Uint64("hard", limit.Hard))
	}

	stats, err := scan(slpCfg, cfg, targets, writer, logger)
	if err != nil {
		writer.Close()
		sink.Log(err.Error(), true)
		return exitUsage
	}
	if err := writer.Close(); err != nil {
		sink.Log(fmt.Sprintf("slp: closing output: %s", err), true)
	}

	sink.Log(fmt.Sprintf(
		"slp: %d queries, %d succeeded, %d failed (%d timed out)",
		stats.Submitted, stats.Succeeded, stats.Failed, stats.TimedOut,
	), false)
	if stats.Succeeded <= 0 {
		return exitNoSuccess
	}
	return exitOK
}

// newSink creates the log sink honouring the configuration and the environment.
func newSink(cfg *config.Config, stderr io.Writer) *logsink.Sink {
	sinkCfg := logsink.DefaultConfig()
	sinkCfg.Out = stderr
	sinkCfg.Level, _ = logsink.ParseLevel(cfg.LogLevel)
	sinkCfg.Format, _ = logsink.ParseFormat(cfg.LogFormat)
	sinkCfg.NoColor = !isTerminal(stderr) || os.Getenv("NO_COLOR") != ""
	logsink.ApplyEnvOverrides(&sinkCfg)

	sink := logsink.New(sinkCfg)
	sink.SetSilent(cfg.Silent)
	return sink
}

// collectTargets gathers the servers from the configuration, the -a flag,
// the positional arguments, and the server list.
//
// The standard input is read when no server is otherwise given.
func collectTargets(cfg *config.Config, flags *cliFlags, args []string, stdin io.Reader) ([]slp.ServerTarget, error) {
	addrs := append([]string{}, cfg.Servers...)
	if flags.address != "" {
		if flags.set["p"] && hasExplicitPort(flags.address) {
			return nil, errPortGivenTwice
		}
		addrs = append(addrs, flags.address)
	}
	addrs = append(addrs, args...)

	targets, err := serverlist.ParseAll(addrs, cfg.Port)
	if err != nil {
		return nil, err
	}

	list := cfg.ServerList
	if list == "" && len(addrs) <= 0 {
		list = serverlist.Stdin
	}
	switch list {
	case "":
	case serverlist.Stdin:
		more, err := serverlist.Read(stdin, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("standard input: %w", err)
		}
		targets = append(targets, more...)
	default:
		more, err := serverlist.ReadFile(list, cfg.Port)
		if err != nil {
			return nil, err
		}
		targets = append(targets, more...)
	}

	if len(targets) <= 0 {
		return nil, errors.New("no servers to query")
	}
	return targets, nil
}

// newWriter creates the outcome writer. Silent mode prints only the payloads.
func newWriter(cfg *config.Config, stdout io.Writer) (output.Writer, error) {
	format := cfg.Format
	if cfg.Silent {
		format = config.FormatRaw
	}
	color := format == config.FormatText && isTerminal(stdout) && os.Getenv("NO_COLOR") == ""
	writer, err := output.New(format, stdout, color)
	if err != nil {
		return nil, err
	}
	if cfg.OnlyOK {
		writer = output.OnlyOK(writer)
	}
	if cfg.SQLite != "" {
		store, err := output.NewSQLiteWriter(context.Background(), cfg.SQLite)
		if err != nil {
			return nil, err
		}
		writer = output.Tee(writer, store)
	}
	return writer, nil
}

// configureResolver installs a [*slp.DNSResolver] when a DNS server is configured.
func configureResolver(slpCfg *slp.Config, cfg *config.Config, logger *slog.Logger) error {
	endpoint, err := cfg.DNSEndpoint()
	if err != nil || !endpoint.IsValid() {
		return err
	}
	resolver, err := slp.NewDNSResolver(slpCfg, cfg.DNSProtocol, endpoint, logger)
	if err != nil {
		return err
	}
	slpCfg.Resolver = resolver
	return nil
}

// scan queries all the targets and returns the final dispatcher counters.
func scan(slpCfg *slp.Config, cfg *config.Config, targets []slp.ServerTarget, writer output.Writer, logger *slog.Logger) (slp.Stats, error) {
	collector := metrics.New()
	var writeErrors atomic.Int64
	handler := slp.HandlerFunc(func(outcome slp.Outcome) {
		collector.Observe(outcome)
		if err := writer.Write(outcome); err != nil && writeErrors.Add(1) == 1 {
			logger.Error("outputWriteFailed", slog.Any("err", err), slog.String("spanID", outcome.SpanID))
		}
	})

	dispatcher, err := slp.NewDispatcher(slpCfg, cfg.Options(), handler, logger)
	if err != nil {
		return slp.Stats{}, err
	}
	collector.RegisterStats(dispatcher.Stats)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan struct{})
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, collector, logger)
		go func() {
			defer close(serverDone)
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("metricsServerFailed", slog.Any("err", err))
			}
		}()
	} else {
		close(serverDone)
	}

	queries := make([]slp.ServerQuery, 0, len(targets))
	for _, target := range targets {
		queries = append(queries, cfg.Query(target))
	}
	dispatcher.SubmitAll(queries...)
	dispatcher.SealAndWait()

	cancel()
	<-serverDone
	return dispatcher.Stats(), nil
}

// isTerminal returns whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && output.IsTerminal(file)
}
