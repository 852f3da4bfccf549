// ABOUTME: Privilege registration for the instrumentation size strategy
// ABOUTME: Install registers an object sizer; strategies check Installed once at construction

// Package agent is the registration point for the privileged sizer used by
// the instrumentation strategy. Nothing is installed by default: a program
// opts in once at startup, before building measurement specs.
package agent

import (
	"errors"
	"sync"

	"github.com/prateek/heapmeter/internal/logger"
	"github.com/prateek/heapmeter/object"
)

var log = logger.Logger("agent")

// ErrAlreadyInstalled is returned when Install is called twice
var ErrAlreadyInstalled = errors.New("agent already installed")

// Instrumentation reports the real number of bytes the runtime holds for an
// object, including allocator rounding.
type Instrumentation interface {
	Name() string
	ObjectSize(o object.Object) (int64, error)
}

// Options configure Install
type Options struct {
	// Instrumentation replaces the bundled allocator sizer
	Instrumentation Instrumentation
}

var (
	mu        sync.RWMutex
	installed Instrumentation
)

// Install registers the instrumentation. With zero Options the bundled
// allocator sizer is used.
func Install(opts Options) error {
	mu.Lock()
	defer mu.Unlock()
	if installed != nil {
		return ErrAlreadyInstalled
	}
	inst := opts.Instrumentation
	if inst == nil {
		inst = Allocator{}
	}
	installed = inst
	log.Info("instrumentation installed", "sizer", inst.Name())
	return nil
}

// Installed returns the registered instrumentation, if any
func Installed() (Instrumentation, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return installed, installed != nil
}

// Uninstall removes the registered instrumentation. Strategies built
// earlier keep the instance they captured.
func Uninstall() {
	mu.Lock()
	defer mu.Unlock()
	installed = nil
}
