// ABOUTME: Tests for the size strategies and their selection chains
// ABOUTME: Checks layout-model sizes, probed offsets and agent delegation

package strategy

import (
	"errors"
	"testing"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapmeter/agent"
	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/object"
)

// headered mimics a runtime with 16 byte object and array headers
func headered() layout.Layout {
	return layout.Layout{
		ObjectHeaderSize: 16,
		ArrayHeaderSize:  16,
		ReferenceSize:    8,
		WordSize:         8,
		ObjectAlignment:  8,
		ArrayAlignment:   8,
		MapHeaderSize:    48,
		ChanHeaderSize:   96,
	}
}

type nodeA struct{ Ref *nodeC }
type nodeB struct{}
type nodeC struct{ Back *nodeA }

type padded struct {
	A int8
	B int64
	C int8
}

type base struct {
	ID   int64
	Name string
}

type derived struct {
	base
	Name string // shadows base.Name; both are stored
}

type holdsWeak struct {
	W weak.Pointer[[1024]byte]
}

func mustOf(t *testing.T, v any) object.Object {
	t.Helper()
	o, err := object.Of(v)
	require.NoError(t, err)
	return o
}

func TestSpecificationShallow(t *testing.T) {
	s := NewSpecification(headered())

	tests := []struct {
		name string
		root any
		want int64
	}{
		{"one reference field", &nodeA{}, 24},
		{"no fields", &nodeB{}, 16},
		{"reference back", &nodeC{}, 24},
		{"ten nil slots", make([]*nodeA, 10), 96},
		{"padding not modelled", &padded{}, 16 + 10 + 6},
		{"shadowed field counted once per declaration", &derived{}, 16 + 8 + 16 + 16},
		{"weak wrapper", &holdsWeak{}, 24},
		{"string", "abc", 24},
		{"boxed scalar", new(int32), 24},
		{"map", map[int64]int32{1: 1, 2: 2}, 48 + 2*13 + 6},
		{"chan", make(chan *nodeA, 3), 96 + 24},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Shallow(mustOf(t, tt.root))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpecificationDeterministic(t *testing.T) {
	s := NewSpecification(layout.Go())
	o := mustOf(t, &derived{Name: "x"})
	first, err := s.Shallow(o)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Shallow(o)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSpecificationCompressedReferences(t *testing.T) {
	l := headered()
	l.CompressedReferenceThreshold = 32 << 30
	l.HeapBytes = 4 << 30
	s := NewSpecification(l)

	got, err := s.Shallow(mustOf(t, make([]*nodeA, 10)))
	require.NoError(t, err)
	assert.Equal(t, int64(16+40), got)
}

func TestOffsetProbingShallow(t *testing.T) {
	if !probingAvailable {
		t.Skip("offset probing compiled out")
	}
	s, err := NewOffsetProbing(layout.Go())
	require.NoError(t, err)

	tests := []struct {
		name string
		root any
		want int64
	}{
		{"padding observed", &padded{}, 24},
		{"element stride", make([]padded, 3), 72},
		{"embedded", &derived{}, 40},
		{"scalar", new(int16), 8},
		{"string", "hello", 8},
		{"map", map[int64]int64{1: 1}, 72},
		{"empty struct", &nodeB{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Shallow(mustOf(t, tt.root))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetProbingAddsHeaders(t *testing.T) {
	if !probingAvailable {
		t.Skip("offset probing compiled out")
	}
	s, err := NewOffsetProbing(headered())
	require.NoError(t, err)

	got, err := s.Shallow(mustOf(t, &nodeA{}))
	require.NoError(t, err)
	assert.Equal(t, int64(24), got)

	got, err = s.Shallow(mustOf(t, make([]*nodeA, 10)))
	require.NoError(t, err)
	assert.Equal(t, int64(96), got)
}

type fakeInstrumentation struct {
	size int64
	err  error
}

func (f fakeInstrumentation) Name() string { return "fake" }

func (f fakeInstrumentation) ObjectSize(object.Object) (int64, error) { return f.size, f.err }

func withAgent(t *testing.T, inst agent.Instrumentation) {
	t.Helper()
	agent.Uninstall()
	t.Cleanup(agent.Uninstall)
	if inst != nil {
		require.NoError(t, agent.Install(agent.Options{Instrumentation: inst}))
	}
}

func TestInstrumentation(t *testing.T) {
	withAgent(t, nil)
	_, err := NewInstrumentation()
	assert.ErrorIs(t, err, ErrStrategyUnavailable)

	withAgent(t, fakeInstrumentation{size: 40})
	s, err := NewInstrumentation()
	require.NoError(t, err)
	assert.Equal(t, "instrumentation/fake", s.Name())

	got, err := s.Shallow(mustOf(t, &nodeA{}))
	require.NoError(t, err)
	assert.Equal(t, int64(40), got)
}

func TestInstrumentationError(t *testing.T) {
	cause := errors.New("boom")
	withAgent(t, fakeInstrumentation{err: cause})
	s, err := NewInstrumentation()
	require.NoError(t, err)

	_, err = s.Shallow(mustOf(t, &nodeA{}))
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "instrumentation/fake", serr.Strategy)
	assert.Contains(t, err.Error(), "strategy.nodeA")
}

func TestSelect(t *testing.T) {
	probing := string(ModeOffsetProbing)
	if !probingAvailable {
		probing = string(ModeSpecification)
	}

	tests := []struct {
		name    string
		mode    Mode
		agent   bool
		want    string
		wantErr error
	}{
		{"instrumentation missing", ModeInstrumentation, false, "", ErrStrategyUnavailable},
		{"instrumentation", ModeInstrumentation, true, "instrumentation/fake", nil},
		{"specification", ModeSpecification, true, "specification", nil},
		{"fallback to spec", ModeFallbackSpec, false, "specification", nil},
		{"fallback prefers agent", ModeFallbackSpec, true, "instrumentation/fake", nil},
		{"best without agent", ModeBest, false, probing, nil},
		{"best with agent", ModeBest, true, "instrumentation/fake", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.agent {
				withAgent(t, fakeInstrumentation{size: 8})
			} else {
				withAgent(t, nil)
			}
			s, err := Select(tt.mode, headered())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestSelectRejectsInvalidInput(t *testing.T) {
	_, err := Select("fastest", layout.Go())
	assert.Error(t, err)

	bad := layout.Go()
	bad.ObjectAlignment = 12
	_, err = Select(ModeSpecification, bad)
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Fallback-Spec ")
	require.NoError(t, err)
	assert.Equal(t, ModeFallbackSpec, m)

	_, err = ParseMode("magic")
	assert.Error(t, err)
}
