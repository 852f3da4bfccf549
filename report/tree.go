// ABOUTME: Tree report writer walking the dominator tree from the roots
// ABOUTME: Prints retained and shallow sizes with a depth limit

package report

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/prateek/heapmeter/graph"
)

// Tree prints each object under the object that dominates it, largest
// retained size first
type Tree struct {
	// MaxDepth is the number of levels printed, roots included. Zero means
	// no limit.
	MaxDepth int
	// MaxChildren limits the children printed per object. Zero means no
	// limit.
	MaxChildren int
}

func (Tree) Name() string { return "tree" }

func (t Tree) Write(w io.Writer, rep *Report) error {
	bw := bufio.NewWriter(w)
	writeSummary(bw, rep)

	g := rep.Graph()
	idom := graph.Dominators(g)
	tree := graph.DominatorTree(idom)
	for _, children := range tree {
		t.sort(rep, children)
	}

	type item struct {
		id    graph.ObjID
		depth int
		note  string // printed instead of a node when set
	}
	var stack []item
	push := func(children []graph.ObjID, depth int) {
		indent := strings.Repeat("  ", depth)
		if t.MaxDepth > 0 && depth >= t.MaxDepth {
			stack = append(stack, item{note: fmt.Sprintf("%s... %d dominated objects", indent, len(children))})
			return
		}
		if t.MaxChildren > 0 && len(children) > t.MaxChildren {
			var rest uint64
			for _, id := range children[t.MaxChildren:] {
				n, _ := rep.Node(id)
				rest += n.Retained
			}
			stack = append(stack, item{note: fmt.Sprintf("%s... %d more objects retaining %s",
				indent, len(children)-t.MaxChildren, humanize.IBytes(rest))})
			children = children[:t.MaxChildren]
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{id: children[i], depth: depth})
		}
	}
	push(tree[0], 0)
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.note != "" {
			fmt.Fprintln(bw, it.note)
			continue
		}
		n, _ := rep.Node(it.id)
		fmt.Fprintf(bw, "%s%s#%d %s  retained %s  self %s\n",
			strings.Repeat("  ", it.depth), label(g, idom[it.id], it.id),
			n.ID, n.Type, humanize.IBytes(n.Retained), humanize.IBytes(n.Size))
		if children := tree[it.id]; len(children) > 0 {
			push(children, it.depth+1)
		}
	}
	return bw.Flush()
}

func (Tree) sort(rep *Report, ids []graph.ObjID) {
	slices.SortFunc(ids, func(a, b graph.ObjID) int {
		na, _ := rep.Node(a)
		nb, _ := rep.Node(b)
		return cmp.Or(cmp.Compare(nb.Retained, na.Retained), cmp.Compare(a, b))
	})
}

// label names the reference from dom to id, or "~ " when id is only
// dominated indirectly
func label(g graph.Graph, dom, id graph.ObjID) string {
	if dom == 0 {
		return ""
	}
	if obj := g.GetObject(dom); obj != nil {
		for _, r := range obj.Refs {
			if r.To == id {
				return "." + r.Via + " "
			}
		}
	}
	return "~ "
}

func writeSummary(w io.Writer, rep *Report) {
	name := rep.Name
	if name == "" {
		name = "measurement"
	}
	fmt.Fprintf(w, "%s: %s in %s objects (%d skipped, strategy %s)",
		name, humanize.IBytes(uint64(max(rep.Bytes, 0))), humanize.Comma(rep.Objects), rep.Skipped, rep.Strategy)
	if rep.Incomplete {
		fmt.Fprint(w, ", incomplete")
	}
	fmt.Fprintln(w)
	for _, c := range rep.Caveats {
		fmt.Fprintf(w, "caveat: %s\n", c)
	}
}

func init() {
	Register(Tree{MaxDepth: 8, MaxChildren: 20})
}
