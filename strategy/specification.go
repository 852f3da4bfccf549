// ABOUTME: Specification strategy estimating sizes from declared field types
// ABOUTME: Sums layout widths over the flattened fields plus headers, padded to alignment

package strategy

import (
	"fmt"

	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/object"
)

// Specification sizes objects from a layout model without touching memory.
// Every flattened field counts once at its declared width; inter-field
// padding is not modelled, only the final alignment.
type Specification struct {
	layout layout.Layout
}

// NewSpecification returns a specification strategy for l
func NewSpecification(l layout.Layout) *Specification {
	return &Specification{layout: l}
}

func (s *Specification) Name() string { return string(ModeSpecification) }

// Layout returns the layout the strategy sizes with
func (s *Specification) Layout() layout.Layout { return s.layout }

func (s *Specification) Shallow(o object.Object) (int64, error) {
	if o.IsNil() {
		return 0, nil
	}
	l := s.layout
	switch o.Kind() {
	case object.Instance:
		return l.InstanceSize(s.fieldBytes(o)), nil
	case object.Array:
		return l.ArraySize(int64(o.Len()), l.Width(o.Type())), nil
	case object.String:
		return l.ArraySize(int64(o.Len()), 1), nil
	case object.Map:
		t := o.Type()
		entry := l.Width(t.Key()) + l.Width(t.Elem()) + 1
		return layout.RoundTo(l.MapHeaderSize+int64(o.Len())*entry, l.ObjectAlignment), nil
	case object.Chan:
		return layout.RoundTo(l.ChanHeaderSize+int64(o.Len())*l.Width(o.Type().Elem()), l.ObjectAlignment), nil
	}
	return 0, &Error{Strategy: s.Name(), Type: o.Type(), Err: fmt.Errorf("cannot size %s", o.Kind())}
}

func (s *Specification) fieldBytes(o object.Object) int64 {
	var n int64
	for _, f := range object.LayoutOf(o.Type()).Fields {
		n += s.layout.Width(f.Type)
	}
	return n
}
