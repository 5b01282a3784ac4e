package commands

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mealmajor/cartsync/config"
)

// initLogger configures the default slog logger from cfg. When cfg.File is
// set, output is also written to a size-rotated file. The returned func
// flushes and closes that file.
func initLogger(cfg config.LogConfig) func() {
	var w io.Writer = os.Stdout
	closer := func() {}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotated)
		closer = func() { _ = rotated.Close() }
	}

	slog.SetDefault(slog.New(newHandler(w, cfg)))
	return closer
}

func newHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
