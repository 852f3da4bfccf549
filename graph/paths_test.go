// ABOUTME: Tests for the paths-to-roots search
// ABOUTME: Validates BFS ordering, labels, path limits and cycle handling

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsToRoots(t *testing.T) {
	// 1 (root) -> 2 -> 3
	//               -> 4
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2}, 2: {3, 4}, 3: nil, 4: nil})

	tests := []struct {
		name     string
		from     ObjID
		maxPaths int
		want     []Path
	}{
		{name: "root itself", from: 1, maxPaths: 5, want: []Path{{IDs: []ObjID{1}}}},
		{name: "one hop", from: 2, maxPaths: 5, want: []Path{{IDs: []ObjID{2, 1}, Via: []string{"f2"}}}},
		{name: "two hops", from: 3, maxPaths: 5, want: []Path{{IDs: []ObjID{3, 2, 1}, Via: []string{"f3", "f2"}}}},
		{name: "sibling", from: 4, maxPaths: 5, want: []Path{{IDs: []ObjID{4, 2, 1}, Via: []string{"f4", "f2"}}}},
		{name: "no paths requested", from: 3, maxPaths: 0, want: nil},
		{name: "unknown object", from: 42, maxPaths: 5, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathsToRoots(g, tt.from, tt.maxPaths))
		})
	}
}

func TestPathsToRootsShortestFirst(t *testing.T) {
	// 1 -> 2 -> 3 -> 5, 1 -> 4 -> 5, and 6 is a second root pointing at 5
	g := build([]ObjID{1, 6}, map[ObjID][]ObjID{1: {2, 4}, 2: {3}, 3: {5}, 4: {5}, 5: nil, 6: {5}})

	paths := PathsToRoots(g, 5, 10)
	require.Len(t, paths, 3)
	assert.Equal(t, []ObjID{5, 6}, paths[0].IDs)
	assert.Equal(t, []ObjID{5, 4, 1}, paths[1].IDs)
	assert.Equal(t, []ObjID{5, 3, 2, 1}, paths[2].IDs)

	assert.Len(t, PathsToRoots(g, 5, 2), 2)
}

func TestPathsToRootsCycles(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2}, 2: {3}, 3: {2, 3}})

	paths := PathsToRoots(g, 3, 10)
	require.Len(t, paths, 1)
	assert.Equal(t, []ObjID{3, 2, 1}, paths[0].IDs)
}

func TestPathsUnreachableFromRoots(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: nil, 2: {3}, 3: nil})
	assert.Empty(t, PathsToRoots(g, 3, 5))
}

func TestPathString(t *testing.T) {
	p := Path{IDs: []ObjID{9, 7, 1}, Via: []string{"Next", "Items[3]"}}
	assert.Equal(t, "#1 -Items[3]-> #7 -Next-> #9", p.String())
	assert.Equal(t, "#4", Path{IDs: []ObjID{4}}.String())
}
