// ABOUTME: Report model built from a recorded measurement graph
// ABOUTME: Carries totals, caveats and per-object sizes with retained bytes

// Package report turns a recorded measurement into a portable document and
// renders it in the registered formats.
package report

import (
	"cmp"
	"slices"

	"github.com/prateek/heapmeter/graph"
	"github.com/prateek/heapmeter/meter"
)

// Node is one measured object in a report
type Node struct {
	ID       graph.ObjID `json:"id" yaml:"id"`
	Type     string      `json:"type" yaml:"type"`
	Size     uint64      `json:"size" yaml:"size"`
	Retained uint64      `json:"retained" yaml:"retained"`
	Refs     []graph.Ref `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// Report is a measurement with its attribution graph
type Report struct {
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Strategy   string        `json:"strategy" yaml:"strategy"`
	Bytes      int64         `json:"bytes" yaml:"bytes"`
	Objects    int64         `json:"objects" yaml:"objects"`
	Skipped    int64         `json:"skipped" yaml:"skipped"`
	Incomplete bool          `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Caveats    []string      `json:"caveats,omitempty" yaml:"caveats,omitempty"`
	Roots      []graph.ObjID `json:"roots" yaml:"roots"`
	Nodes      []Node        `json:"nodes" yaml:"nodes"`
}

// New builds a report from a graph and the result of the measurement that
// produced it. res may be nil.
func New(g graph.Graph, res *meter.Result) *Report {
	rep := &Report{Roots: g.GetRoots().IDs}
	if res != nil {
		rep.Strategy = res.Strategy
		rep.Bytes = res.Bytes
		rep.Objects = res.Objects
		rep.Skipped = res.Skipped
		rep.Incomplete = res.Incomplete
		for _, c := range res.CaveatList() {
			rep.Caveats = append(rep.Caveats, c.Error())
		}
	}
	retained := graph.RetainedSize(g)
	g.ForEachObject(func(obj *graph.Object) {
		rep.Nodes = append(rep.Nodes, Node{
			ID:       obj.ID,
			Type:     obj.Type,
			Size:     obj.Size,
			Retained: retained[obj.ID],
			Refs:     slices.Clone(obj.Refs),
		})
	})
	if res == nil {
		rep.Objects = int64(len(rep.Nodes))
		rep.Bytes = int64(graph.TotalSize(g))
	}
	return rep
}

// FromRecorder builds a report from a recorder after its measurement
func FromRecorder(rec *graph.Recorder) *Report {
	return New(rec.Graph(), rec.Result())
}

// Graph rebuilds the attribution graph of the report
func (r *Report) Graph() *graph.MemGraph {
	g := graph.NewMemGraph()
	for _, n := range r.Nodes {
		g.AddObject(&graph.Object{ID: n.ID, Type: n.Type, Size: n.Size, Refs: slices.Clone(n.Refs)})
	}
	g.SetRoots(graph.Roots{IDs: slices.Clone(r.Roots)})
	return g
}

// Node returns the node with the given ID
func (r *Report) Node(id graph.ObjID) (Node, bool) {
	i, ok := slices.BinarySearchFunc(r.Nodes, id, func(n Node, id graph.ObjID) int {
		return cmp.Compare(n.ID, id)
	})
	if !ok {
		return Node{}, false
	}
	return r.Nodes[i], true
}

// Top returns the n nodes retaining the most bytes, largest first. n <= 0
// returns all nodes.
func (r *Report) Top(n int) []Node {
	nodes := slices.Clone(r.Nodes)
	slices.SortStableFunc(nodes, func(a, b Node) int {
		return cmp.Or(cmp.Compare(b.Retained, a.Retained), cmp.Compare(a.ID, b.ID))
	})
	if n > 0 && n < len(nodes) {
		nodes = nodes[:n]
	}
	return nodes
}

// TypeStat aggregates the objects of one type
type TypeStat struct {
	Type    string
	Objects int
	Bytes   uint64
}

// ByType returns per-type object counts and shallow bytes, largest first
func (r *Report) ByType() []TypeStat {
	idx := map[string]int{}
	var stats []TypeStat
	for _, n := range r.Nodes {
		i, ok := idx[n.Type]
		if !ok {
			i = len(stats)
			idx[n.Type] = i
			stats = append(stats, TypeStat{Type: n.Type})
		}
		stats[i].Objects++
		stats[i].Bytes += n.Size
	}
	slices.SortStableFunc(stats, func(a, b TypeStat) int {
		return cmp.Or(cmp.Compare(b.Bytes, a.Bytes), cmp.Compare(a.Type, b.Type))
	})
	return stats
}
