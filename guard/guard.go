// ABOUTME: Guard contract and the policy combining guards with panic recovery
// ABOUTME: Excluded objects and edges contribute nothing and are never traversed

// Package guard decides which objects are measured and which edges are
// followed. A Policy is the logical AND of its guards; the namespace
// boundary, when present, is always consulted first.
package guard

import (
	"fmt"

	"github.com/prateek/heapmeter/internal/logger"
	"github.com/prateek/heapmeter/object"
)

var log = logger.Logger("guard")

// Guard excludes objects or edges. Implementations must be deterministic
// and safe for concurrent use.
type Guard interface {
	// Name identifies the guard in skip reasons and errors
	Name() string
	SkipObject(o object.Object) bool
	SkipEdge(e object.Edge) bool
}

// Error reports a guard that panicked. The subject was excluded.
type Error struct {
	Guard   string
	Subject string
	Value   any
}

func (e *Error) Error() string {
	return fmt.Sprintf("guard %s panicked on %s: %v", e.Guard, e.Subject, e.Value)
}

func (e *Error) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Policy is an ordered conjunction of guards
type Policy struct {
	guards []Guard
}

// leading is implemented by guards evaluated before all others
type leading interface {
	leading()
}

// NewPolicy combines guards. Boundary guards are moved to the front, the
// others keep their relative order.
func NewPolicy(guards ...Guard) *Policy {
	ordered := make([]Guard, 0, len(guards))
	for _, g := range guards {
		if _, ok := g.(leading); ok {
			ordered = append(ordered, g)
		}
	}
	for _, g := range guards {
		if _, ok := g.(leading); !ok && g != nil {
			ordered = append(ordered, g)
		}
	}
	return &Policy{guards: ordered}
}

// Guards returns the guards in evaluation order
func (p *Policy) Guards() []Guard {
	return append([]Guard(nil), p.guards...)
}

// ShouldMeasure reports whether o is counted. A panicking guard excludes o
// and is reported as a *Error.
func (p *Policy) ShouldMeasure(o object.Object) (bool, error) {
	ok, _, err := p.Measure(o)
	return ok, err
}

// ShouldFollow reports whether the edge's target is traversed. The target
// object must also pass every guard.
func (p *Policy) ShouldFollow(e object.Edge) (bool, error) {
	ok, _, err := p.Follow(e)
	return ok, err
}

// Measure is ShouldMeasure that also names the excluding guard
func (p *Policy) Measure(o object.Object) (bool, string, error) {
	if p == nil {
		return true, "", nil
	}
	for _, g := range p.guards {
		skip, err := safely(g, o.String, func() bool { return g.SkipObject(o) })
		if err != nil {
			return false, g.Name(), err
		}
		if skip {
			return false, g.Name(), nil
		}
	}
	return true, "", nil
}

// Follow is ShouldFollow that also names the excluding guard
func (p *Policy) Follow(e object.Edge) (bool, string, error) {
	if p == nil {
		return true, "", nil
	}
	for _, g := range p.guards {
		skip, err := safely(g, e.String, func() bool { return g.SkipEdge(e) || g.SkipObject(e.Target) })
		if err != nil {
			return false, g.Name(), err
		}
		if skip {
			return false, g.Name(), nil
		}
	}
	return true, "", nil
}

func safely(g Guard, subject func() string, check func() bool) (skip bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Guard: g.Name(), Subject: subject(), Value: r}
			log.Warn("guard panicked", "guard", g.Name(), "err", err)
			skip = true
		}
	}()
	return check(), nil
}

// Func adapts a pair of functions to a Guard. Nil functions never skip.
type Func struct {
	Label  string
	Object func(object.Object) bool
	Edge   func(object.Edge) bool
}

func (f Func) Name() string { return f.Label }

func (f Func) SkipObject(o object.Object) bool { return f.Object != nil && f.Object(o) }

func (f Func) SkipEdge(e object.Edge) bool { return f.Edge != nil && f.Edge(e) }
