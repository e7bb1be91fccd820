// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Levels lists the accepted level names.
var Levels = []string{"none", "error", "warn", "info", "debug"}

// Configure installs the default slog logger. Logs go to stderr as text,
// or as JSON to file when one is given. "none" discards everything. The
// returned file, if any, must be closed by the caller.
func Configure(level, file string) (*os.File, error) {
	return configure(level, file, os.Stderr)
}

func configure(level, file string, stderr io.Writer) (*os.File, error) {
	opts := slog.HandlerOptions{}
	switch level {
	case "none":
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil, nil
	case "error":
		opts.Level = slog.LevelError
	case "warn":
		opts.Level = slog.LevelWarn
	case "info", "":
		opts.Level = slog.LevelInfo
	case "debug":
		opts.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unexpected log level %q", level)
	}

	if file == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &opts)))
		return nil, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &opts)))
	return f, nil
}
