// ABOUTME: Address range index of counted objects, ordered by start address
// ABOUTME: Finds interior pointers and objects enclosing ones counted earlier

package meter

import (
	"github.com/google/btree"

	"github.com/prateek/heapmeter/object"
)

const extentDegree = 32

// extent is the address range of one counted object and the bytes it
// currently contributes to the total
type extent struct {
	start, end uintptr
	key        object.Key
	bytes      int64
}

func extentLess(a, b extent) bool { return a.start < b.start }

// extentIndex holds the non-overlapping ranges of counted instances and
// spans. Like the visited set it stores plain addresses only. An object
// partially overlapping an indexed range is counted but not indexed.
type extentIndex struct {
	tree *btree.BTreeG[extent]
}

func newExtentIndex() *extentIndex {
	return &extentIndex{tree: btree.NewG(extentDegree, extentLess)}
}

// within reports whether [start, end) lies inside an indexed range
func (x *extentIndex) within(start, end uintptr) bool {
	if end <= start {
		return false
	}
	inside := false
	x.tree.DescendLessOrEqual(extent{start: start}, func(e extent) bool {
		inside = end <= e.end
		return false
	})
	return inside
}

// insert indexes [start, end) for k and removes the indexed ranges it
// encloses, returning them. It changes nothing and reports false when the
// range partially overlaps an indexed one.
func (x *extentIndex) insert(start, end uintptr, k object.Key, bytes int64) ([]extent, bool) {
	if end <= start {
		return nil, true
	}
	overlap := false
	x.tree.DescendLessOrEqual(extent{start: start}, func(e extent) bool {
		if e.start == start {
			return true
		}
		overlap = e.end > start
		return false
	})
	if overlap {
		return nil, false
	}

	var enclosed []extent
	x.tree.AscendRange(extent{start: start}, extent{start: end}, func(e extent) bool {
		if e.end > end {
			overlap = true
			return false
		}
		enclosed = append(enclosed, e)
		return true
	})
	if overlap {
		return nil, false
	}
	for _, e := range enclosed {
		x.tree.Delete(e)
	}
	x.tree.ReplaceOrInsert(extent{start: start, end: end, key: k, bytes: bytes})
	return enclosed, true
}

// remove drops the range of k starting at start
func (x *extentIndex) remove(k object.Key, start uintptr) (extent, bool) {
	e, ok := x.tree.Get(extent{start: start})
	if !ok || e.key != k {
		return extent{}, false
	}
	x.tree.Delete(e)
	return e, true
}

func (x *extentIndex) len() int { return x.tree.Len() }
