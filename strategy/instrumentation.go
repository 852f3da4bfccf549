// ABOUTME: Instrumentation strategy delegating to the installed agent
// ABOUTME: Unavailable until agent.Install has been called

package strategy

import (
	"fmt"

	"github.com/prateek/heapmeter/agent"
	"github.com/prateek/heapmeter/object"
)

// Instrumentation reports the sizes observed by the installed agent
type Instrumentation struct {
	inst agent.Instrumentation
}

// NewInstrumentation captures the installed agent, or fails with
// ErrStrategyUnavailable when none is installed.
func NewInstrumentation() (*Instrumentation, error) {
	inst, ok := agent.Installed()
	if !ok {
		return nil, fmt.Errorf("%w: instrumentation agent not installed", ErrStrategyUnavailable)
	}
	return &Instrumentation{inst: inst}, nil
}

func (s *Instrumentation) Name() string { return "instrumentation/" + s.inst.Name() }

func (s *Instrumentation) Shallow(o object.Object) (int64, error) {
	if o.IsNil() {
		return 0, nil
	}
	n, err := s.inst.ObjectSize(o)
	if err != nil {
		return 0, &Error{Strategy: s.Name(), Type: o.Type(), Err: err}
	}
	if n < 0 {
		return 0, &Error{Strategy: s.Name(), Type: o.Type(), Err: fmt.Errorf("negative size %d", n)}
	}
	return n, nil
}
