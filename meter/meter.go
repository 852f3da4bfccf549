// ABOUTME: Traversal engine computing shallow and deep sizes of object graphs
// ABOUTME: Walks a work list, applies guards, deduplicates by identity and aggregates caveats

// Package meter measures the memory held by Go object graphs. A Meter walks
// every object reachable from its roots once, asks the size strategy for
// each object's shallow size and sums them.
package meter

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/prateek/heapmeter/object"
	"github.com/prateek/heapmeter/strategy"
)

// cancelCheckInterval is how many objects are processed between context checks
const cancelCheckInterval = 256

// Meter runs measurements with one Spec. It is safe for concurrent use;
// every call has its own visited set and work list.
type Meter struct {
	spec *Spec
}

// New returns a Meter for spec. A nil spec uses the default spec.
func New(spec *Spec) (*Meter, error) {
	if spec == nil {
		var err error
		if spec, err = DefaultSpec(); err != nil {
			return nil, err
		}
	}
	return &Meter{spec: spec}, nil
}

// Spec returns the spec the meter measures with
func (m *Meter) Spec() *Spec { return m.spec }

type mode int

const (
	modeDeep mode = iota
	modeShallow
	modeCount
)

// Measure returns the deep size of everything reachable from roots, each
// distinct object counted once. Nil roots contribute nothing.
func (m *Meter) Measure(ctx context.Context, roots ...any) (*Result, error) {
	return m.run(ctx, roots, modeDeep)
}

// MeasureRoots returns the combined shallow size of roots, without
// following any reference.
func (m *Meter) MeasureRoots(ctx context.Context, roots ...any) (*Result, error) {
	return m.run(ctx, roots, modeShallow)
}

// MeasureDeep returns the deep size of root in bytes
func (m *Meter) MeasureDeep(root any) (int64, error) {
	r, err := m.run(context.Background(), []any{root}, modeDeep)
	if err != nil {
		return 0, err
	}
	return r.Bytes, nil
}

// MeasureShallow returns the size of root alone in bytes
func (m *Meter) MeasureShallow(root any) (int64, error) {
	r, err := m.run(context.Background(), []any{root}, modeShallow)
	if err != nil {
		return 0, err
	}
	return r.Bytes, nil
}

// CountChildren returns the number of distinct objects reachable from
// root, root included, without sizing them.
func (m *Meter) CountChildren(root any) (int64, error) {
	r, err := m.run(context.Background(), []any{root}, modeCount)
	if err != nil {
		return 0, err
	}
	return r.Objects, nil
}

type work struct {
	obj object.Object
	via object.Edge
}

// walk is the state of one measurement
type walk struct {
	spec    *Spec
	opts    object.Options
	mode    mode
	visited *visitedSet
	extents *extentIndex
	queue   []work
	head    int // next queue index in breadth-first order
	result  Result
	caveats []error
	seen    map[string]struct{} // caveat keys
}

func (m *Meter) run(ctx context.Context, roots []any, md mode) (res *Result, err error) {
	sp := m.spec
	start := time.Now()
	if sp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sp.timeout)
		defer cancel()
	}
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))

	w := &walk{
		spec:    sp,
		opts:    sp.Options(),
		mode:    md,
		visited: newVisitedSet(),
		extents: newExtentIndex(),
		seen:    map[string]struct{}{},
	}
	w.result.Strategy = sp.strategy.Name()

	objs := make([]object.Object, 0, len(roots))
	for _, r := range roots {
		o, err := object.Root(r, w.opts)
		if err != nil {
			w.skip(object.Edge{Err: err}, "unsupported root", err)
			continue
		}
		objs = append(objs, o)
	}
	sp.listener.Started(objs)
	for _, o := range objs {
		if o.IsNil() {
			continue
		}
		ok, by, err := sp.policy.Measure(o)
		if !ok {
			w.skip(object.Edge{Target: o}, by, err)
			continue
		}
		w.queue = append(w.queue, work{obj: o})
	}

	err = w.drain(ctx)
	w.result.Caveats = multierr.Combine(w.caveats...)
	w.result.Elapsed = time.Since(start)
	res = &w.result
	if err != nil {
		res.Incomplete = true
		sp.log.Warn("measurement stopped", "err", err, "objects", res.Objects, "bytes", res.Bytes)
	} else {
		sp.log.Debug("measured", "bytes", res.Bytes, "objects", res.Objects, "skipped", res.Skipped,
			"strategy", res.Strategy, "elapsed", res.Elapsed)
	}
	sp.listener.Done(res)
	return res, err
}

func (w *walk) drain(ctx context.Context) error {
	for n := 0; ; n++ {
		it, ok := w.pop()
		if !ok {
			return nil
		}
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrMeasurementAborted, err)
			}
		}
		if limit := w.spec.maxObjects; limit > 0 && w.result.Objects >= limit && !w.visited.covered(it.obj.Key(), it.obj.Len()) {
			return fmt.Errorf("%w: more than %d objects", ErrMeasurementAborted, limit)
		}
		if err := w.step(it); err != nil {
			return err
		}
	}
}

func (w *walk) pop() (work, bool) {
	if w.spec.order == BreadthFirst {
		if w.head == len(w.queue) {
			return work{}, false
		}
		it := w.queue[w.head]
		w.queue[w.head] = work{}
		w.head++
		if w.head > 1024 && w.head*2 > len(w.queue) {
			w.queue = append(w.queue[:0], w.queue[w.head:]...)
			w.head = 0
		}
		return it, true
	}
	if len(w.queue) == 0 {
		return work{}, false
	}
	it := w.queue[len(w.queue)-1]
	w.queue[len(w.queue)-1] = work{}
	w.queue = w.queue[:len(w.queue)-1]
	return it, true
}

// step counts one object and queues its children. An object lying inside
// a counted one adds nothing; a counted object enclosing earlier ones takes
// over their bytes. Faults and panics while reading the object are recorded
// and the object is abandoned.
func (w *walk) step(it work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("reading %s: %v", it.obj, r)
			w.skip(it.via, "fault", cause)
		}
	}()

	o := it.obj
	k := o.Key()
	if w.visited.covered(k, o.Len()) {
		return nil
	}
	start, end := o.Extent()
	if w.extents.within(start, end) {
		return nil
	}
	prev, _ := w.visited.visit(k, o.Len())
	fresh := o
	if prev > 0 {
		fresh = o.Prefix(o.Len() - prev)
	}

	var size int64
	if w.mode != modeCount {
		if size, err = w.size(o, prev); err != nil {
			return err
		}
		w.result.Bytes += size
		if prev > 0 {
			w.spec.listener.Grown(o, size)
		} else {
			w.spec.listener.Visited(o, size, it.via)
		}
	} else if prev == 0 {
		w.spec.listener.Visited(o, 0, it.via)
	}
	if prev == 0 {
		w.result.Objects++
	}
	w.index(o, start, end, prev, size)

	if w.mode == modeShallow {
		return nil
	}
	for e := range object.Edges(fresh, w.opts) {
		e.Source = o
		w.follow(e)
	}
	return nil
}

// index records the extent of o, which added size bytes. Objects it
// encloses are withdrawn from the totals.
func (w *walk) index(o object.Object, start, end uintptr, prev int, size int64) {
	k := o.Key()
	bytes := size
	var (
		old     extent
		grown   bool
		oldFrom uintptr
	)
	if prev > 0 {
		oldFrom, _ = o.WithLen(prev).Extent()
		if old, grown = w.extents.remove(k, oldFrom); grown {
			bytes += old.bytes
		}
	}
	enclosed, ok := w.extents.insert(start, end, k, bytes)
	if !ok {
		if grown {
			w.extents.insert(oldFrom, old.end, k, bytes)
		}
		return
	}
	for _, e := range enclosed {
		w.result.Bytes -= e.bytes
		w.result.Objects--
		w.spec.listener.Absorbed(e.key, o, e.bytes)
	}
}

// size returns the bytes added by o. For a span already counted with prev
// elements it is the difference between the two extents.
func (w *walk) size(o object.Object, prev int) (int64, error) {
	st := w.spec.strategy
	n, err := st.Shallow(o)
	if err != nil {
		return 0, asStrategyError(st, o, err)
	}
	if prev == 0 {
		return n, nil
	}
	before, err := st.Shallow(o.WithLen(prev))
	if err != nil {
		return 0, asStrategyError(st, o, err)
	}
	return n - before, nil
}

func asStrategyError(st strategy.Strategy, o object.Object, err error) error {
	var se *strategy.Error
	if errors.As(err, &se) {
		return err
	}
	return &strategy.Error{Strategy: st.Name(), Type: o.Type(), Err: err}
}

func (w *walk) follow(e object.Edge) {
	if e.Err != nil {
		w.skip(e, "unsupported", e.Err)
		return
	}
	if e.Target.IsNil() {
		return
	}
	if w.visited.covered(e.Target.Key(), e.Target.Len()) || w.extents.within(e.Target.Extent()) {
		if ok, _, _ := w.spec.policy.Follow(e); ok {
			w.spec.listener.Shared(e)
		}
		return
	}
	ok, by, err := w.spec.policy.Follow(e)
	if !ok {
		w.skip(e, by, err)
		return
	}
	w.queue = append(w.queue, work{obj: e.Target, via: e})
	w.spec.listener.Followed(e)
}

// skip counts an excluded edge and records err once per descriptor
func (w *walk) skip(e object.Edge, reason string, err error) {
	w.result.Skipped++
	if err != nil {
		key := object.TypeName(e.Descriptor.Owner) + "|" + e.Descriptor.Path + "|" + e.Kind.String() + "|" + reason
		if _, dup := w.seen[key]; !dup {
			w.seen[key] = struct{}{}
			w.caveats = append(w.caveats, err)
		}
		reason = reason + ": " + err.Error()
	}
	w.spec.listener.Skipped(e, reason)
}

var defaultSpec = sync.OnceValues(func() (*Spec, error) { return NewSpec() })

// DefaultSpec returns the process-wide spec used by the package-level
// helpers: the best available strategy on the Go layout and the default
// reference policy.
func DefaultSpec() (*Spec, error) { return defaultSpec() }

// Measure measures roots with spec, or with the default spec when spec is nil
func Measure(roots []any, spec *Spec) (*Result, error) {
	m, err := New(spec)
	if err != nil {
		return nil, err
	}
	return m.Measure(context.Background(), roots...)
}

// MeasureDeep returns the deep size of root with the default spec
func MeasureDeep(root any) (int64, error) {
	m, err := New(nil)
	if err != nil {
		return 0, err
	}
	return m.MeasureDeep(root)
}

// MeasureShallow returns the shallow size of root with the default spec
func MeasureShallow(root any) (int64, error) {
	m, err := New(nil)
	if err != nil {
		return 0, err
	}
	return m.MeasureShallow(root)
}

// CountChildren counts the objects reachable from root with the default spec
func CountChildren(root any) (int64, error) {
	m, err := New(nil)
	if err != nil {
		return 0, err
	}
	return m.CountChildren(root)
}
