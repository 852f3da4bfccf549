// ABOUTME: BFS search for reference paths from an object back to the roots
// ABOUTME: Returns up to K shortest cycle-free paths with their labels

package graph

import (
	"slices"
	"strings"
)

// Path is a chain of references from a target object to a root
type Path struct {
	IDs []ObjID  // Object IDs from target to root
	Via []string // Via[i] labels the reference from IDs[i+1] to IDs[i]
}

// String renders the path root first, e.g. "#1 -Items-> #7 -[3]-> #9"
func (p Path) String() string {
	var b strings.Builder
	for i := len(p.IDs) - 1; i >= 0; i-- {
		if i < len(p.IDs)-1 {
			b.WriteString(" -")
			b.WriteString(p.Via[i])
			b.WriteString("-> ")
		}
		b.WriteByte('#')
		b.WriteString(formatID(p.IDs[i]))
	}
	return b.String()
}

// PathsToRoots finds up to maxPaths shortest paths from an object to the
// roots, breadth first over reverse edges
func PathsToRoots(g Graph, from ObjID, maxPaths int) []Path {
	if maxPaths <= 0 || g.GetObject(from) == nil {
		return nil
	}

	reverse := BuildReverseEdges(g)
	rootSet := make(map[ObjID]bool)
	for _, id := range g.GetRoots().IDs {
		rootSet[id] = true
	}
	if rootSet[from] {
		return []Path{{IDs: []ObjID{from}}}
	}

	var result []Path
	queue := []Path{{IDs: []ObjID{from}}}
	for len(queue) > 0 && len(result) < maxPaths {
		node := queue[0]
		queue = queue[1:]
		last := node.IDs[len(node.IDs)-1]

		for _, ref := range reverse[last] {
			if slices.Contains(node.IDs, ref.From) {
				continue
			}
			next := Path{
				IDs: append(slices.Clip(node.IDs), ref.From),
				Via: append(slices.Clip(node.Via), ref.Via),
			}
			if rootSet[ref.From] {
				result = append(result, next)
				if len(result) >= maxPaths {
					break
				}
				continue
			}
			queue = append(queue, next)
		}
	}
	return result
}
