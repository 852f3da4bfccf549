// ABOUTME: Calculates retained memory sizes using dominator tree analysis
// ABOUTME: An object retains itself and everything it dominates
package graph

// RetainedSize computes the retained size of each object reachable from the
// roots: the bytes that would no longer be reachable without it.
func RetainedSize(g Graph) map[ObjID]uint64 {
	d := dominate(g)
	sizes := retained(g, d)
	out := make(map[ObjID]uint64, len(d.vertex))
	for i := 1; i < len(d.vertex); i++ {
		out[d.vertex[i]] = sizes[i]
	}
	return out
}

// RetainedSizeSubsets computes retained sizes for targetIDs only. IDs that
// are unknown or unreachable are left out.
func RetainedSizeSubsets(g Graph, targetIDs []ObjID) map[ObjID]uint64 {
	out := make(map[ObjID]uint64, len(targetIDs))
	if len(targetIDs) == 0 {
		return out
	}
	d := dominate(g)
	sizes := retained(g, d)
	index := make(map[ObjID]int, len(d.vertex))
	for i, v := range d.vertex {
		index[v] = i
	}
	for _, id := range targetIDs {
		if i, ok := index[id]; ok && id != 0 {
			out[id] = sizes[i]
		}
	}
	return out
}

// retained sums sizes bottom-up; dominators always precede the nodes they
// dominate in depth-first order.
func retained(g Graph, d domInfo) []uint64 {
	sizes := make([]uint64, len(d.vertex))
	for i := 1; i < len(d.vertex); i++ {
		if obj := g.GetObject(d.vertex[i]); obj != nil {
			sizes[i] = obj.Size
		}
	}
	for i := len(d.vertex) - 1; i > 0; i-- {
		sizes[d.idom[i]] += sizes[i]
	}
	return sizes
}
