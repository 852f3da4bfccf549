// ABOUTME: Traversal listener contract with a no-op base and a fan-out combinator
// ABOUTME: Listeners observe roots, edges, visits, span growth, absorbed interiors and skips

package meter

import "github.com/prateek/heapmeter/object"

// Listener observes a measurement. Callbacks run synchronously on the
// measuring goroutine, in the order of the traversal discipline.
type Listener interface {
	// Started is called once with the converted roots
	Started(roots []object.Object)
	// Followed is called when an edge's target is queued
	Followed(e object.Edge)
	// Shared is called for an edge whose target was already counted
	Shared(e object.Edge)
	// Visited is called when an object is counted. via is the zero Edge for
	// roots.
	Visited(o object.Object, size int64, via object.Edge)
	// Grown is called when a known span is extended by a wider slice
	Grown(o object.Object, delta int64)
	// Absorbed is called when outer, just counted, encloses the memory of an
	// object counted earlier. The inner object's bytes are withdrawn from
	// the total and it no longer counts as a distinct object.
	Absorbed(inner object.Key, outer object.Object, bytes int64)
	// Skipped is called for every edge or root that is not followed, with
	// the excluding guard or the failure as reason.
	Skipped(e object.Edge, reason string)
	// Done is called once with the final result
	Done(r *Result)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) Started([]object.Object)                   {}
func (NopListener) Followed(object.Edge)                      {}
func (NopListener) Shared(object.Edge)                        {}
func (NopListener) Visited(object.Object, int64, object.Edge) {}
func (NopListener) Grown(object.Object, int64)                {}
func (NopListener) Absorbed(object.Key, object.Object, int64) {}
func (NopListener) Skipped(object.Edge, string)               {}
func (NopListener) Done(*Result)                              {}

type multiListener []Listener

// Listeners fans events out to every non-nil listener in order
func Listeners(ls ...Listener) Listener {
	var out multiListener
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multiListener) Started(roots []object.Object) {
	for _, l := range m {
		l.Started(roots)
	}
}

func (m multiListener) Followed(e object.Edge) {
	for _, l := range m {
		l.Followed(e)
	}
}

func (m multiListener) Shared(e object.Edge) {
	for _, l := range m {
		l.Shared(e)
	}
}

func (m multiListener) Visited(o object.Object, size int64, via object.Edge) {
	for _, l := range m {
		l.Visited(o, size, via)
	}
}

func (m multiListener) Grown(o object.Object, delta int64) {
	for _, l := range m {
		l.Grown(o, delta)
	}
}

func (m multiListener) Absorbed(inner object.Key, outer object.Object, bytes int64) {
	for _, l := range m {
		l.Absorbed(inner, outer, bytes)
	}
}

func (m multiListener) Skipped(e object.Edge, reason string) {
	for _, l := range m {
		l.Skipped(e, reason)
	}
}

func (m multiListener) Done(r *Result) {
	for _, l := range m {
		l.Done(r)
	}
}
