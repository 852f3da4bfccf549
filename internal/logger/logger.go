// ABOUTME: Subsystem loggers on log/slog configured from HEAPMETER_LOG_* variables
// ABOUTME: Each package holds one logger; levels can be tuned per subsystem at runtime

// Package logger hands out one *slog.Logger per subsystem.
//
//	var log = logger.Logger("meter")
//	log.Debug("measured", "bytes", n)
//
// HEAPMETER_LOG_LEVEL takes a comma separated list of subsystem=level
// pairs and an optional bare default level, e.g. "meter=debug,warn".
// HEAPMETER_LOG_FORMAT selects "text" (default) or "json".
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	envLevel  = "HEAPMETER_LOG_LEVEL"
	envFormat = "HEAPMETER_LOG_FORMAT"
)

// Format is the log output encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config is the parsed logging environment
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	Format          Format
}

// LevelFor returns the level configured for subsystem
func (c Config) LevelFor(subsystem string) slog.Level {
	if l, ok := c.SubsystemLevels[subsystem]; ok {
		return l
	}
	return c.DefaultLevel
}

var (
	mu       sync.Mutex
	cfg      *Config
	loggers  = map[string]*slog.Logger{}
	handlers = map[string]*handler{}
	output   io.Writer = os.Stderr
)

// Logger returns the logger of subsystem, creating it on first use
func Logger(subsystem string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[subsystem]; ok {
		return l
	}
	c := currentConfig()
	h := newHandler(subsystem, c.LevelFor(subsystem), c.Format)
	l := slog.New(h)
	loggers[subsystem] = l
	handlers[subsystem] = h
	return l
}

// SetLevel changes the level of an existing subsystem logger
func SetLevel(subsystem string, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if h, ok := handlers[subsystem]; ok {
		h.level.Set(level)
	}
}

// SetAllLevels changes the level of every subsystem logger created so far
func SetAllLevels(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	for _, h := range handlers {
		h.level.Set(level)
	}
}

// SetOutput redirects all loggers, including those already created
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Reload re-reads the logging environment and applies the levels to the
// loggers created so far. The format only changes for new loggers.
func Reload() Config {
	c := ConfigFromEnv()
	mu.Lock()
	defer mu.Unlock()
	cfg = &c
	for sub, h := range handlers {
		h.level.Set(c.LevelFor(sub))
	}
	return c
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ConfigFromEnv parses the logging environment
func ConfigFromEnv() Config {
	c := Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: map[string]slog.Level{},
	}
	for _, part := range strings.Split(os.Getenv(envLevel), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if sub, name, ok := strings.Cut(part, "="); ok {
			if l, ok := ParseLevel(name); ok {
				c.SubsystemLevels[strings.TrimSpace(sub)] = l
			}
			continue
		}
		if l, ok := ParseLevel(part); ok {
			c.DefaultLevel = l
		}
	}
	if strings.EqualFold(os.Getenv(envFormat), "json") {
		c.Format = FormatJSON
	}
	return c
}

// ParseLevel parses debug, info, warn(ing) or error
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func currentConfig() *Config {
	if cfg == nil {
		c := ConfigFromEnv()
		cfg = &c
	}
	return cfg
}
