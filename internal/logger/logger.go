// Package logger configures the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/nhle/workhub/internal/model"
)

var (
	mu      gosync.Mutex
	current *slog.Logger
	level   = new(slog.LevelVar)
	closer  io.Closer
)

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default logger described by cfg. The output path may
// be "stdout", "stderr" or a file path (parent directories are created).
func Init(cfg model.LoggerConfig) error {
	level.Set(ParseLevel(cfg.Level))

	var w io.Writer
	var c io.Closer
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.OutputPath, err)
		}
		w, c = f, f
	}

	l := slog.New(NewHandler(w, cfg.Format))

	mu.Lock()
	if closer != nil {
		closer.Close()
	}
	current, closer = l, c
	mu.Unlock()

	slog.SetDefault(l)
	return nil
}

// NewHandler builds a JSON handler for format "json" and a tint text
// handler otherwise. Source locations are attached to warn and error
// records only.
func NewHandler(w io.Writer, format string) slog.Handler {
	if strings.EqualFold(format, "json") {
		base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return NewConditionalSourceHandler(base, slog.LevelWarn, slog.LevelError)
	}

	base := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
	return NewConditionalSourceHandler(base, slog.LevelWarn, slog.LevelError)
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// SetLevel changes the level of the installed logger at runtime.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Get returns the installed logger, creating a stderr tint logger on
// first use.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		current = slog.New(NewHandler(os.Stderr, "text"))
		slog.SetDefault(current)
	}
	return current
}

// WithComponent returns a child logger tagged with component=name.
func WithComponent(name string) *slog.Logger {
	return Get().With("component", name)
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}
