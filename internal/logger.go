package internal

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// redactedKeys never reach the log output, whatever group they sit in.
// Processor credentials and buyer secrets travel through the same structs
// that get logged on failures.
var redactedKeys = map[string]bool{
	"private_key":   true,
	"public_key":    true,
	"integrity_key": true,
	"token":         true,
	"session":       true,
	"password":      true,
	"authorization": true,
}

// NewLogger builds the process logger: JSON in prod, text in dev. Every
// record carries the service name so payment logs can be told apart from
// the host's. The level has already been checked by Config.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceAttr(env == "prod"),
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if env == "prod" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", "rutavity-payments")
}

func replaceAttr(utcTime bool) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if redactedKeys[strings.ToLower(a.Key)] {
			return slog.String(a.Key, "[redacted]")
		}
		if utcTime && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
		}
		return a
	}
}
