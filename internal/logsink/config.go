// SPDX-License-Identifier: GPL-3.0-or-later

package logsink

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvLogLevel overrides [Config.Level].
	EnvLogLevel = "SLP_LOG_LEVEL"

	// EnvLogFormat overrides [Config.Format].
	EnvLogFormat = "SLP_LOG_FORMAT"
)

const (
	// FormatConsole renders human-readable coloured lines.
	FormatConsole = "console"

	// FormatJSON renders one JSON object per line.
	FormatJSON = "json"
)

// Config configures a [*Sink].
type Config struct {
	// Level is the minimum level of the records to emit.
	Level slog.Level

	// Format is either [FormatConsole] or [FormatJSON].
	Format string

	// NoColor disables colours in [FormatConsole].
	NoColor bool

	// Out is where records are written.
	Out io.Writer
}

// DefaultConfig returns the default configuration: info level, console
// format, writing to the standard error.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: FormatConsole,
		Out:    os.Stderr,
	}
}

// ApplyEnvOverrides applies the [EnvLogLevel] and [EnvLogFormat] variables
// to cfg, ignoring values that do not parse.
func ApplyEnvOverrides(cfg *Config) {
	if level, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = level
	}
	if format, ok := ParseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.Format = format
	}
}

// ParseLevel parses a level name. The boolean is false for empty or
// unknown names.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ParseFormat parses a format name. The boolean is false for empty or
// unknown names.
func ParseFormat(raw string) (string, bool) {
	switch format := strings.ToLower(strings.TrimSpace(raw)); format {
	case FormatConsole, FormatJSON:
		return format, true
	default:
		return FormatConsole, false
	}
}
