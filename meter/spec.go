// ABOUTME: Immutable measurement spec built from functional options
// ABOUTME: Bundles strategy, guard policy, traversal order, slice mode, caps and listener

package meter

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prateek/heapmeter/guard"
	"github.com/prateek/heapmeter/internal/logger"
	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/object"
	"github.com/prateek/heapmeter/strategy"
)

// Order is the traversal discipline of the work list
type Order int

const (
	// DepthFirst pops the most recently discovered object first
	DepthFirst Order = iota
	// BreadthFirst pops the oldest discovered object first
	BreadthFirst
)

func (o Order) String() string {
	if o == BreadthFirst {
		return "breadth-first"
	}
	return "depth-first"
}

// ParseOrder parses "depth-first" (or "dfs") and "breadth-first" (or "bfs")
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "depth-first", "dfs":
		return DepthFirst, nil
	case "breadth-first", "bfs":
		return BreadthFirst, nil
	}
	return 0, fmt.Errorf("unknown traversal order %q", s)
}

// SliceMode selects how much of a slice's backing array is counted
type SliceMode int

const (
	// SliceCapacity counts the whole backing array up to the slice capacity
	SliceCapacity SliceMode = iota
	// SliceLength counts only the elements up to the slice length. Views
	// nested inside one another over one backing array count once; views
	// that only partly overlap each count their own elements.
	SliceLength
)

func (m SliceMode) String() string {
	if m == SliceLength {
		return "length"
	}
	return "capacity"
}

// ParseSliceMode parses "capacity" or "length"
func ParseSliceMode(s string) (SliceMode, error) {
	switch s {
	case "", "capacity":
		return SliceCapacity, nil
	case "length":
		return SliceLength, nil
	}
	return 0, fmt.Errorf("unknown slice mode %q", s)
}

// Spec configures measurements. It is immutable once built and safe to
// share between goroutines.
type Spec struct {
	strategy   strategy.Strategy
	refs       guard.ReferencePolicy
	extra      []guard.Guard
	policy     *guard.Policy
	order      Order
	sliceMode  SliceMode
	measurable bool
	maxObjects int64
	timeout    time.Duration
	listener   Listener
	log        *slog.Logger
}

// Option configures a Spec
type Option func(*Spec)

// WithStrategy sets the size strategy. The default selects ModeBest on the
// Go layout.
func WithStrategy(s strategy.Strategy) Option {
	return func(sp *Spec) { sp.strategy = s }
}

// WithReferencePolicy replaces the reference-following options
func WithReferencePolicy(r guard.ReferencePolicy) Option {
	return func(sp *Spec) { sp.refs = r }
}

// WithGuards adds guards after the built-in ones
func WithGuards(g ...guard.Guard) Option {
	return func(sp *Spec) { sp.extra = append(sp.extra, g...) }
}

// WithOrder sets the traversal order
func WithOrder(o Order) Option {
	return func(sp *Spec) { sp.order = o }
}

// WithSliceMode sets slice accounting
func WithSliceMode(m SliceMode) Option {
	return func(sp *Spec) { sp.sliceMode = m }
}

// WithMeasurable enables or disables object.Measurable children
func WithMeasurable(enabled bool) Option {
	return func(sp *Spec) { sp.measurable = enabled }
}

// WithMaxObjects aborts a measurement after n distinct objects. Zero means
// no limit.
func WithMaxObjects(n int64) Option {
	return func(sp *Spec) { sp.maxObjects = n }
}

// WithTimeout aborts a measurement running longer than d. Zero means no
// limit.
func WithTimeout(d time.Duration) Option {
	return func(sp *Spec) { sp.timeout = d }
}

// WithListener receives traversal events. Listeners are called
// synchronously on the measuring goroutine.
func WithListener(l Listener) Option {
	return func(sp *Spec) { sp.listener = l }
}

// WithLogger replaces the meter subsystem logger
func WithLogger(l *slog.Logger) Option {
	return func(sp *Spec) { sp.log = l }
}

// NewSpec builds a Spec
func NewSpec(opts ...Option) (*Spec, error) {
	sp := &Spec{
		refs:       guard.DefaultReferencePolicy(),
		measurable: true,
	}
	return sp.build(opts)
}

// With returns a copy of s with opts applied
func (s *Spec) With(opts ...Option) (*Spec, error) {
	cp := *s
	cp.extra = append([]guard.Guard(nil), s.extra...)
	return cp.build(opts)
}

func (s *Spec) build(opts []Option) (*Spec, error) {
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == nil {
		st, err := strategy.Select(strategy.ModeBest, layout.Go())
		if err != nil {
			return nil, err
		}
		s.strategy = st
	}
	switch {
	case s.maxObjects < 0:
		return nil, errors.New("max objects must not be negative")
	case s.timeout < 0:
		return nil, errors.New("timeout must not be negative")
	case s.order != DepthFirst && s.order != BreadthFirst:
		return nil, fmt.Errorf("unknown traversal order %d", s.order)
	}
	if s.listener == nil {
		s.listener = NopListener{}
	}
	if s.log == nil {
		s.log = logger.Logger("meter")
	}
	s.policy = s.refs.Policy(s.extra...)
	return s, nil
}

// Strategy returns the size strategy
func (s *Spec) Strategy() strategy.Strategy { return s.strategy }

// Policy returns the guard policy
func (s *Spec) Policy() *guard.Policy { return s.policy }

// ReferencePolicy returns the reference-following options
func (s *Spec) ReferencePolicy() guard.ReferencePolicy { return s.refs }

// Order returns the traversal order
func (s *Spec) Order() Order { return s.order }

// SliceMode returns the slice accounting mode
func (s *Spec) SliceMode() SliceMode { return s.sliceMode }

// MaxObjects returns the object cap, zero when unlimited
func (s *Spec) MaxObjects() int64 { return s.maxObjects }

// Timeout returns the measurement deadline, zero when unlimited
func (s *Spec) Timeout() time.Duration { return s.timeout }

// Options returns the enumerator options the spec traverses with
func (s *Spec) Options() object.Options {
	o := s.refs.EnumeratorOptions()
	o.SliceLength = s.sliceMode == SliceLength
	o.IgnoreMeasurable = !s.measurable
	return o
}
