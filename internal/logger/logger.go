// Package logger configures the process-wide slog default handler from
// the WIKIREADER_LOG directive string (or the equivalent config.yaml
// keys), the way spec.md §6 describes a "RUST_LOG-style level filter".
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the slog handler backing the default logger.
type Format string

const (
	FormatPretty Format = "pretty" // colorized, human time (tint)
	FormatJSON   Format = "json"
	FormatText   Format = "text" // key=value
)

// ParseFormat converts a string to Format, defaulting to pretty.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatPretty
	}
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// directive is one "path=level" override parsed out of a filter string.
type directive struct {
	path  string
	level slog.Level
}

// Init configures the global slog default handler from a directive
// string of the form "default[,path=level,...]", e.g.
// "info,wikitext=debug,lua=warn". Each package that wants to
// participate in per-path filtering calls slog.Default().WithGroup(name)
// so its records carry a top-level group matching one of the override
// paths.
func Init(format Format, filter string) {
	defaultLevel, overrides := parseFilter(filter)

	var base slog.Handler
	switch format {
	case FormatJSON:
		base = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: minLevel(defaultLevel, overrides)})
	case FormatText:
		base = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: minLevel(defaultLevel, overrides)})
	default:
		base = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      minLevel(defaultLevel, overrides),
			TimeFormat: time.DateTime,
		})
	}

	slog.SetDefault(slog.New(&filterHandler{
		base:         base,
		defaultLevel: defaultLevel,
		overrides:    overrides,
	}))
}

func parseFilter(filter string) (slog.Level, []directive) {
	parts := strings.Split(filter, ",")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return slog.LevelInfo, nil
	}

	defaultLevel := ParseLevel(strings.TrimSpace(parts[0]))
	var overrides []directive
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		path, lvl, ok := strings.Cut(p, "=")
		if !ok || path == "" {
			continue
		}
		overrides = append(overrides, directive{path: path, level: ParseLevel(lvl)})
	}
	return defaultLevel, overrides
}

func minLevel(def slog.Level, overrides []directive) slog.Level {
	min := def
	for _, d := range overrides {
		if d.level < min {
			min = d.level
		}
	}
	return min
}

// filterHandler wraps a base slog.Handler, routing a record's level
// against the override table keyed by the record's group path (set via
// Logger.WithGroup per package): the longest override path equal to the
// group path or to a leading part of it wins, falling back to
// defaultLevel.
type filterHandler struct {
	base         slog.Handler
	defaultLevel slog.Level
	overrides    []directive
	group        string
}

func (h *filterHandler) levelFor(group string) slog.Level {
	level, best := h.defaultLevel, -1
	for _, d := range h.overrides {
		if (d.path == group || strings.HasPrefix(group, d.path+".")) && len(d.path) > best {
			level, best = d.level, len(d.path)
		}
	}
	return level
}

func (h *filterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.levelFor(h.group)
}

func (h *filterHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.base.Handle(ctx, r)
}

func (h *filterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filterHandler{base: h.base.WithAttrs(attrs), defaultLevel: h.defaultLevel, overrides: h.overrides, group: h.group}
}

func (h *filterHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &filterHandler{base: h.base.WithGroup(name), defaultLevel: h.defaultLevel, overrides: h.overrides, group: group}
}
