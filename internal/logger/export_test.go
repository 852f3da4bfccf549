// ABOUTME: Test helpers reaching into the logger registry
// ABOUTME: reset drops cached loggers so environment changes apply to new handles

package logger

import (
	"log/slog"
	"os"
	"testing"
)

// reset drops cached loggers and configuration, and does so again when t ends
func reset(t *testing.T) {
	t.Helper()
	drop := func() {
		mu.Lock()
		defer mu.Unlock()
		cfg = nil
		loggers = map[string]*slog.Logger{}
		handlers = map[string]*handler{}
		output = os.Stderr
	}
	drop()
	t.Cleanup(drop)
}
