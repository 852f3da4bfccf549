// ABOUTME: Tests for the graph recorder listener driven by real measurements
// ABOUTME: Checks identity, shared edges, span growth and attribution queries

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapmeter/meter"
	"github.com/prateek/heapmeter/object"
)

type node struct {
	Name        string
	Left, Right *node
}

func record(t *testing.T, opts []meter.Option, roots ...any) (*Recorder, *meter.Result) {
	t.Helper()
	rec := NewRecorder()
	sp, err := meter.NewSpec(append(opts, meter.WithListener(rec))...)
	require.NoError(t, err)
	m, err := meter.New(sp)
	require.NoError(t, err)
	res, err := m.Measure(context.Background(), roots...)
	require.NoError(t, err)
	return rec, res
}

func idOf(t *testing.T, rec *Recorder, v any) ObjID {
	t.Helper()
	o, err := object.Of(v)
	require.NoError(t, err)
	id, ok := rec.ID(o)
	require.True(t, ok, "%s not recorded", o)
	return id
}

func TestRecorderDiamond(t *testing.T) {
	shared := &node{}
	root := &node{Left: &node{Right: shared}, Right: &node{Left: shared}}

	for _, order := range []meter.Order{meter.DepthFirst, meter.BreadthFirst} {
		t.Run(order.String(), func(t *testing.T) {
			rec, res := record(t, []meter.Option{meter.WithOrder(order)}, root)
			g := rec.Graph()

			assert.Same(t, res, rec.Result())
			assert.Equal(t, int(res.Objects), g.NumObjects())
			assert.Equal(t, uint64(res.Bytes), TotalSize(g))

			rootID, sharedID := idOf(t, rec, root), idOf(t, rec, shared)
			assert.Equal(t, []ObjID{rootID}, g.GetRoots().IDs)
			assert.Equal(t, "github.com/prateek/heapmeter/graph.node", g.GetObject(sharedID).Type)

			// both parents point at the shared node, although it is counted once
			rev := BuildReverseEdges(g)
			assert.Len(t, rev[sharedID], 2)

			assert.Equal(t, rootID, Dominators(g)[sharedID])
			assert.Equal(t, uint64(res.Bytes), RetainedSize(g)[rootID])

			paths := PathsToRoots(g, sharedID, 5)
			require.Len(t, paths, 2)
			labels := [][]string{paths[0].Via, paths[1].Via}
			assert.ElementsMatch(t, [][]string{{"Right", "Left"}, {"Left", "Right"}}, labels)
		})
	}
}

func TestRecorderCycle(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Left: a}
	a.Left = b

	rec, res := record(t, nil, a)
	g := rec.Graph()

	aID, bID := idOf(t, rec, a), idOf(t, rec, b)
	assert.Equal(t, []Ref{{To: bID, Via: "Left"}}, refsTo(g.GetObject(aID), bID))
	assert.Equal(t, []Ref{{To: aID, Via: "Left"}}, refsTo(g.GetObject(bID), aID))
	assert.Equal(t, uint64(res.Bytes), RetainedSize(g)[aID])
}

func TestRecorderSpanGrowth(t *testing.T) {
	backing := make([]*node, 8)
	for i := range backing {
		backing[i] = &node{}
	}
	short, full := backing[4:], backing

	rec, res := record(t, []meter.Option{meter.WithSliceMode(meter.SliceLength)}, short, full)
	g := rec.Graph()

	// both slices end at the same address: one span, grown once
	span := idOf(t, rec, full)
	assert.Equal(t, span, idOf(t, rec, short))
	assert.Len(t, g.GetObject(span).Refs, 8)
	assert.Equal(t, uint64(res.Bytes), TotalSize(g))
	assert.Equal(t, []ObjID{span}, g.GetRoots().IDs)
}

func TestRecorderIgnoresExcludedTargets(t *testing.T) {
	type holder struct {
		Keep *node
		Skip *node `heapmeter:"-"`
	}
	h := &holder{Keep: &node{}, Skip: &node{}}

	rec, res := record(t, nil, h)
	g := rec.Graph()

	assert.Equal(t, int(res.Objects), g.NumObjects())
	_, ok := rec.ID(mustObject(t, h.Skip))
	assert.False(t, ok)
}

type cell struct {
	A, B int64
}

type table struct {
	Cells []cell
	Refs  []*cell
}

func TestRecorderInteriorPointers(t *testing.T) {
	tbl := &table{Cells: make([]cell, 4)}
	for i := range tbl.Cells {
		tbl.Refs = append(tbl.Refs, &tbl.Cells[i])
	}

	for _, order := range []meter.Order{meter.DepthFirst, meter.BreadthFirst} {
		t.Run(order.String(), func(t *testing.T) {
			rec, res := record(t, []meter.Option{meter.WithOrder(order)}, tbl)
			g := rec.Graph()

			assert.Equal(t, int64(3), res.Objects)
			assert.Equal(t, int(res.Objects), g.NumObjects())
			assert.Equal(t, uint64(res.Bytes), TotalSize(g))
			g.ForEachObject(func(obj *Object) {
				for _, ref := range obj.Refs {
					assert.NotNil(t, g.GetObject(ref.To), "reference %s from #%d", ref.Via, obj.ID)
				}
			})
		})
	}

	// depth first counts the cells through Refs before Cells encloses them
	rec, _ := record(t, nil, tbl)
	g := rec.Graph()
	cells, refs := idOf(t, rec, tbl.Cells), idOf(t, rec, tbl.Refs)
	assert.Len(t, refsTo(g.GetObject(refs), cells), 4)
	assert.Equal(t, idOf(t, rec, tbl), Dominators(g)[cells], "reachable from the table and from Refs")
}

func refsTo(obj *Object, id ObjID) []Ref {
	var out []Ref
	for _, r := range obj.Refs {
		if r.To == id {
			out = append(out, r)
		}
	}
	return out
}

func mustObject(t *testing.T, v any) object.Object {
	t.Helper()
	o, err := object.Of(v)
	require.NoError(t, err)
	return o
}
