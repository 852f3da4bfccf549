// ABOUTME: Size strategy contract and the fallback chains that pick one at startup
// ABOUTME: Defines the unavailable sentinel and the typed error naming strategy and type

// Package strategy computes the shallow size of a single object. Three
// interchangeable strategies differ in the privilege they need: the
// instrumentation strategy asks an installed agent, offset probing reads field
// offsets through unsafe and the specification strategy only uses declared
// types and a layout model.
package strategy

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/prateek/heapmeter/internal/logger"
	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/object"
)

var log = logger.Logger("strategy")

// ErrStrategyUnavailable is returned when a strategy's privilege was never
// granted, or no strategy of a fallback chain is available.
var ErrStrategyUnavailable = errors.New("size strategy unavailable")

// Strategy computes the shallow size of one object in bytes
type Strategy interface {
	Name() string
	Shallow(o object.Object) (int64, error)
}

// Error is a failure of a strategy on a specific object
type Error struct {
	Strategy string
	Type     reflect.Type
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s strategy failed on %s: %v", e.Strategy, object.TypeName(e.Type), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Mode selects a strategy or a fallback chain
type Mode string

const (
	ModeInstrumentation Mode = "instrumentation"
	ModeSpecification   Mode = "specification"
	ModeOffsetProbing   Mode = "offset-probing"
	// ModeFallbackSpec tries instrumentation, then specification
	ModeFallbackSpec Mode = "fallback-spec"
	// ModeFallbackProbing tries instrumentation, then offset probing
	ModeFallbackProbing Mode = "fallback-probing"
	// ModeBest tries instrumentation, then offset probing, then specification
	ModeBest Mode = "best"
)

// Modes lists every accepted mode
var Modes = []Mode{
	ModeInstrumentation, ModeSpecification, ModeOffsetProbing,
	ModeFallbackSpec, ModeFallbackProbing, ModeBest,
}

// ParseMode parses a mode name, case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown strategy mode %q", s)
}

var chains = map[Mode][]Mode{
	ModeInstrumentation: {ModeInstrumentation},
	ModeSpecification:   {ModeSpecification},
	ModeOffsetProbing:   {ModeOffsetProbing},
	ModeFallbackSpec:    {ModeInstrumentation, ModeSpecification},
	ModeFallbackProbing: {ModeInstrumentation, ModeOffsetProbing},
	ModeBest:            {ModeInstrumentation, ModeOffsetProbing, ModeSpecification},
}

var (
	announced sync.Map // strategy name -> struct{}
	guessWarn sync.Once
)

// Select returns the first available strategy of the chain named by mode.
// The layout is used by the specification and probing strategies.
func Select(mode Mode, l layout.Layout) (Strategy, error) {
	chain, ok := chains[mode]
	if !ok {
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	for _, m := range chain {
		s, err := build(m, l)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, loaded := announced.LoadOrStore(s.Name(), struct{}{}); !loaded {
			log.Info("size strategy selected", "mode", string(mode), "strategy", s.Name(), "layout", l.String())
		}
		if m == ModeSpecification {
			guessWarn.Do(func() {
				log.Warn("object sizes are guessed from declared types; install the agent for exact sizes")
			})
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: mode %s: %w", ErrStrategyUnavailable, mode, errors.Join(errs...))
}

func build(m Mode, l layout.Layout) (Strategy, error) {
	switch m {
	case ModeInstrumentation:
		return NewInstrumentation()
	case ModeOffsetProbing:
		return NewOffsetProbing(l)
	case ModeSpecification:
		return NewSpecification(l), nil
	}
	return nil, fmt.Errorf("unknown strategy mode %q", m)
}
