// ABOUTME: Lengauer-Tarjan dominators over the measured object graph
// ABOUTME: Iterative depth-first numbering and path compression, no recursion

package graph

// domInfo is the dominator tree in depth-first numbering. vertex[0] is the
// super-root and idom[i] < i for every other vertex.
type domInfo struct {
	vertex []ObjID
	idom   []int
}

// Dominators computes the immediate dominator of each object reachable from
// the roots. The super-root (ID 0) dominates all roots and has no entry
// itself. References to objects missing from the graph are ignored.
func Dominators(g Graph) map[ObjID]ObjID {
	d := dominate(g)
	idom := make(map[ObjID]ObjID, len(d.vertex))
	for i := 1; i < len(d.vertex); i++ {
		idom[d.vertex[i]] = d.vertex[d.idom[i]]
	}
	return idom
}

func dominate(g Graph) domInfo {
	succ := map[ObjID][]ObjID{0: g.GetRoots().IDs}
	g.ForEachObject(func(obj *Object) {
		if obj.ID != 0 {
			succ[obj.ID] = obj.Ptrs()
		}
	})

	// depth-first numbering from the super-root
	num := map[ObjID]int{0: 0}
	vertex := []ObjID{0}
	parent := []int{-1}
	type frame struct {
		v    ObjID
		next int
	}
	stack := []frame{{v: 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ws := succ[top.v]
		if top.next == len(ws) {
			stack = stack[:len(stack)-1]
			continue
		}
		w := ws[top.next]
		top.next++
		if _, seen := num[w]; seen {
			continue
		}
		if _, known := succ[w]; !known {
			continue
		}
		num[w] = len(vertex)
		vertex = append(vertex, w)
		parent = append(parent, num[top.v])
		stack = append(stack, frame{v: w})
	}

	n := len(vertex)
	pred := make([][]int, n)
	for i, v := range vertex {
		for _, w := range succ[v] {
			if j, ok := num[w]; ok && j != 0 {
				pred[j] = append(pred[j], i)
			}
		}
	}

	semi := make([]int, n)
	idom := make([]int, n)
	label := make([]int, n)
	ancestor := make([]int, n)
	bucket := make([][]int, n)
	for i := range n {
		semi[i], label[i], ancestor[i] = i, i, -1
	}

	var path []int
	compress := func(v int) {
		path = path[:0]
		for x := v; ancestor[ancestor[x]] != -1; x = ancestor[x] {
			path = append(path, x)
		}
		for i := len(path) - 1; i >= 0; i-- {
			x := path[i]
			a := ancestor[x]
			if semi[label[a]] < semi[label[x]] {
				label[x] = label[a]
			}
			ancestor[x] = ancestor[a]
		}
	}
	eval := func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}

	for w := n - 1; w > 0; w-- {
		for _, v := range pred[w] {
			if u := eval(v); semi[u] < semi[w] {
				semi[w] = semi[u]
			}
		}
		bucket[semi[w]] = append(bucket[semi[w]], w)
		p := parent[w]
		ancestor[w] = p
		for _, v := range bucket[p] {
			if u := eval(v); semi[u] < semi[v] {
				idom[v] = u
			} else {
				idom[v] = p
			}
		}
		bucket[p] = nil
	}
	for w := 1; w < n; w++ {
		if idom[w] != semi[w] {
			idom[w] = idom[idom[w]]
		}
	}
	return domInfo{vertex: vertex, idom: idom}
}

// DominatorTree builds a tree structure from immediate dominators.
// Returns a map from each node to its list of immediately dominated nodes.
func DominatorTree(idom map[ObjID]ObjID) map[ObjID][]ObjID {
	tree := make(map[ObjID][]ObjID, len(idom)+1)
	tree[0] = []ObjID{}
	for node := range idom {
		tree[node] = []ObjID{}
	}
	for node, dom := range idom {
		tree[dom] = append(tree[dom], node)
	}
	return tree
}
