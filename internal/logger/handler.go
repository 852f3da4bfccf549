// ABOUTME: slog handler that tags records with their subsystem and filters by a mutable level
// ABOUTME: Writes through a redirectable output so existing loggers follow SetOutput

package logger

import (
	"context"
	"log/slog"
)

// redirect writes to the current package output
type redirect struct{}

func (redirect) Write(p []byte) (int, error) {
	mu.Lock()
	w := output
	mu.Unlock()
	return w.Write(p)
}

type handler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newHandler(subsystem string, level slog.Level, format Format) *handler {
	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			}
			return a
		},
	}
	var inner slog.Handler
	if format == FormatJSON {
		inner = slog.NewJSONHandler(redirect{}, opts)
	} else {
		inner = slog.NewTextHandler(redirect{}, opts)
	}
	return &handler{
		level: lv,
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{level: h.level, inner: h.inner.WithGroup(name)}
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	}
	return "error"
}
