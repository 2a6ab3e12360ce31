package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	charmLog "github.com/charmbracelet/log"

	"github.com/sipeed/uptimebot/pkg/config"
)

var current atomic.Pointer[slog.Logger]

func init() {
	l, _ := newWithWriter(config.LoggingConfig{}, os.Stderr)
	current.Store(l)
}

// Configure replaces the process-wide logger according to cfg.
func Configure(cfg config.LoggingConfig) error {
	l, err := newWithWriter(cfg, os.Stderr)
	if err != nil {
		return err
	}
	current.Store(l)
	return nil
}

// SetOutput redirects logging to w using cfg. Mostly useful in tests.
func SetOutput(cfg config.LoggingConfig, w io.Writer) error {
	l, err := newWithWriter(cfg, w)
	if err != nil {
		return err
	}
	current.Store(l)
	return nil
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		pretty := charmLog.NewWithOptions(w, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			Formatter:       charmLog.TextFormatter,
		})
		return slog.New(pretty), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
}

func parseLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", input)
	}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func log(level slog.Level, component, msg string, fields map[string]any) {
	l := current.Load()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+1)
	if component != "" {
		attrs = append(attrs, slog.String("component", component))
	}

	// map iteration order is random; keep output stable.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	l.LogAttrs(ctx, level, msg, attrs...)
}

func Debug(msg string) { log(slog.LevelDebug, "", msg, nil) }
func Info(msg string)  { log(slog.LevelInfo, "", msg, nil) }
func Warn(msg string)  { log(slog.LevelWarn, "", msg, nil) }
func Error(msg string) { log(slog.LevelError, "", msg, nil) }

func DebugC(component, msg string) { log(slog.LevelDebug, component, msg, nil) }
func InfoC(component, msg string)  { log(slog.LevelInfo, component, msg, nil) }
func WarnC(component, msg string)  { log(slog.LevelWarn, component, msg, nil) }
func ErrorC(component, msg string) { log(slog.LevelError, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	log(slog.LevelDebug, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]any) {
	log(slog.LevelInfo, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]any) {
	log(slog.LevelWarn, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]any) {
	log(slog.LevelError, component, msg, fields)
}
