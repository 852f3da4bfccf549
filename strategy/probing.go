// ABOUTME: Offset probing strategy measuring field offsets on sentinel allocations
// ABOUTME: Probes each type once, caching the end of its last field and its element stride

package strategy

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/object"
)

// OffsetProbing sizes objects from addresses observed on a sentinel
// allocation of each type: the furthest field end for instances and the
// distance between the two elements of a [2]T for element strides.
type OffsetProbing struct {
	layout layout.Layout
	probes sync.Map // reflect.Type -> probe
}

type probe struct {
	end    int64 // one past the last byte of the last field
	stride int64 // distance between consecutive array elements
}

// NewOffsetProbing returns an offset probing strategy, or
// ErrStrategyUnavailable when unsafe memory access is compiled out.
func NewOffsetProbing(l layout.Layout) (*OffsetProbing, error) {
	if !probingAvailable {
		return nil, fmt.Errorf("%w: offset probing disabled by the purego build tag", ErrStrategyUnavailable)
	}
	return &OffsetProbing{layout: l}, nil
}

func (s *OffsetProbing) Name() string { return string(ModeOffsetProbing) }

// Layout returns the layout headers and alignments are taken from
func (s *OffsetProbing) Layout() layout.Layout { return s.layout }

func (s *OffsetProbing) Shallow(o object.Object) (int64, error) {
	if o.IsNil() {
		return 0, nil
	}
	l := s.layout
	switch o.Kind() {
	case object.Instance:
		p, err := s.probe(o.Type())
		if err != nil {
			return 0, err
		}
		body := layout.RoundTo(p.end, int64(o.Type().Align()))
		return l.InstanceSize(body), nil
	case object.Array:
		p, err := s.probe(o.Type())
		if err != nil {
			return 0, err
		}
		return l.ArraySize(int64(o.Len()), p.stride), nil
	case object.String:
		return l.ArraySize(int64(o.Len()), 1), nil
	case object.Map:
		t := o.Type()
		k, err := s.probe(t.Key())
		if err != nil {
			return 0, err
		}
		v, err := s.probe(t.Elem())
		if err != nil {
			return 0, err
		}
		return layout.RoundTo(l.MapHeaderSize+int64(o.Len())*(k.stride+v.stride+1), l.ObjectAlignment), nil
	case object.Chan:
		e, err := s.probe(o.Type().Elem())
		if err != nil {
			return 0, err
		}
		return layout.RoundTo(l.ChanHeaderSize+int64(o.Len())*e.stride, l.ObjectAlignment), nil
	}
	return 0, &Error{Strategy: s.Name(), Type: o.Type(), Err: fmt.Errorf("cannot size %s", o.Kind())}
}

func (s *OffsetProbing) probe(t reflect.Type) (probe, error) {
	if p, ok := s.probes.Load(t); ok {
		return p.(probe), nil
	}
	p, err := probeType(t)
	if err != nil {
		return probe{}, &Error{Strategy: s.Name(), Type: t, Err: err}
	}
	s.probes.Store(t, p)
	return p, nil
}

func probeType(t reflect.Type) (p probe, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe allocation: %v", r)
		}
	}()

	pair := reflect.New(reflect.ArrayOf(2, t)).Elem()
	first := pair.Index(0)
	base := first.Addr().Pointer()
	p.stride = int64(pair.Index(1).Addr().Pointer() - base)

	if t.Kind() != reflect.Struct {
		p.end = int64(t.Size())
		return p, nil
	}
	for _, f := range object.LayoutOf(t).Fields {
		v := first.FieldByIndex(f.Index)
		end := int64(v.Addr().Pointer()-base) + int64(v.Type().Size())
		p.end = max(p.end, end)
	}
	return p, nil
}
