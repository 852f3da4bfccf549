// ABOUTME: Measurement listener that records the traversed object graph
// ABOUTME: Assigns stable IDs by object identity and labels every reference

package graph

import (
	"strconv"

	"github.com/prateek/heapmeter/meter"
	"github.com/prateek/heapmeter/object"
)

// Recorder is a meter.Listener that builds a MemGraph of everything a
// measurement counts. Edges into objects counted earlier are recorded too,
// so dominators and paths see the whole reachable graph. A Recorder serves
// one measurement at a time.
type Recorder struct {
	meter.NopListener
	g      *MemGraph
	ids    map[object.Key]ObjID
	roots  []ObjID
	alias  map[ObjID]ObjID // absorbed object -> enclosing object
	result *meter.Result
}

// NewRecorder returns an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{
		g:     NewMemGraph(),
		ids:   make(map[object.Key]ObjID),
		alias: make(map[ObjID]ObjID),
	}
}

// Graph returns the recorded graph
func (r *Recorder) Graph() *MemGraph { return r.g }

// Result returns the result of the last finished measurement, or nil
func (r *Recorder) Result() *meter.Result { return r.result }

// ID returns the ID assigned to o
func (r *Recorder) ID(o object.Object) (ObjID, bool) {
	id, ok := r.ids[o.Key()]
	return id, ok
}

func (r *Recorder) id(k object.Key) ObjID {
	id, ok := r.ids[k]
	if !ok {
		id = ObjID(len(r.ids) + 1)
		r.ids[k] = id
	}
	return id
}

func (r *Recorder) Visited(o object.Object, size int64, via object.Edge) {
	id := r.id(o.Key())
	r.g.AddObject(&Object{ID: id, Type: o.TypeName(), Size: uint64(max(size, 0))})
	if via.Source.IsNil() {
		r.roots = append(r.roots, id)
		r.g.SetRoots(Roots{IDs: r.roots})
	}
}

func (r *Recorder) Followed(e object.Edge) { r.edge(e) }

func (r *Recorder) Shared(e object.Edge) { r.edge(e) }

func (r *Recorder) edge(e object.Edge) {
	from, ok := r.ids[e.Source.Key()]
	if !ok {
		return
	}
	r.g.AddRef(from, Ref{To: r.id(e.Target.Key()), Via: e.Descriptor.String()})
}

func (r *Recorder) Grown(o object.Object, delta int64) {
	if obj := r.g.GetObject(r.ids[o.Key()]); obj != nil {
		obj.Size = uint64(max(int64(obj.Size)+delta, 0))
	}
}

// Absorbed folds inner into outer: inner disappears from the graph and
// references to it point at outer once the measurement is done
func (r *Recorder) Absorbed(inner object.Key, outer object.Object, _ int64) {
	in, ok := r.ids[inner]
	if !ok {
		return
	}
	r.alias[in] = r.id(outer.Key())
	r.g.RemoveObject(in)
}

// Done resolves references to absorbed objects and drops references to
// objects that were never counted, such as interior pointers
func (r *Recorder) Done(res *meter.Result) {
	r.g.Redirect(r.alias)
	r.roots = r.g.GetRoots().IDs
	r.result = res
}

func formatID(id ObjID) string { return strconv.FormatUint(uint64(id), 10) }
