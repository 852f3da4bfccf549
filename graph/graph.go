// ABOUTME: Graph interface and in-memory implementation
// ABOUTME: Stores measured objects and their references in ID order

package graph

import (
	"maps"
	"slices"
	"sync"
)

// Graph is a measured object graph
type Graph interface {
	// AddObject adds or replaces an object
	AddObject(obj *Object)

	// AddRef appends a reference to the object from. It reports false when
	// from is unknown.
	AddRef(from ObjID, ref Ref) bool

	// GetObject retrieves an object by ID
	GetObject(id ObjID) *Object

	// NumObjects returns the total number of objects
	NumObjects() int

	// ForEachObject calls fn for every object in ascending ID order
	ForEachObject(fn func(*Object))

	// SetRoots sets the measurement roots
	SetRoots(roots Roots)

	// GetRoots returns the measurement roots
	GetRoots() Roots
}

// MemGraph is an in-memory implementation of Graph
type MemGraph struct {
	mu      sync.RWMutex
	objects map[ObjID]*Object
	roots   Roots
}

// NewMemGraph creates a new in-memory graph
func NewMemGraph() *MemGraph {
	return &MemGraph{
		objects: make(map[ObjID]*Object),
	}
}

// RemoveObject deletes an object. References to it are left in place.
func (g *MemGraph) RemoveObject(id ObjID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, id)
}

// Redirect rewrites references and roots through alias, following chains,
// then drops references and roots whose target is not in the graph
func (g *MemGraph) Redirect(alias map[ObjID]ObjID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	resolve := func(id ObjID) (ObjID, bool) {
		for range len(alias) + 1 {
			to, ok := alias[id]
			if !ok {
				break
			}
			id = to
		}
		_, ok := g.objects[id]
		return id, ok
	}
	for _, obj := range g.objects {
		refs := obj.Refs[:0]
		for _, ref := range obj.Refs {
			if to, ok := resolve(ref.To); ok {
				ref.To = to
				refs = append(refs, ref)
			}
		}
		clear(obj.Refs[len(refs):])
		obj.Refs = refs
	}
	var roots []ObjID
	for _, id := range g.roots.IDs {
		if to, ok := resolve(id); ok && !slices.Contains(roots, to) {
			roots = append(roots, to)
		}
	}
	g.roots = Roots{IDs: roots}
}

// AddObject adds or replaces an object
func (g *MemGraph) AddObject(obj *Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[obj.ID] = obj
}

// AddRef appends ref to the references of from
func (g *MemGraph) AddRef(from ObjID, ref Ref) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj, ok := g.objects[from]
	if !ok {
		return false
	}
	obj.Refs = append(obj.Refs, ref)
	return true
}

// GetObject retrieves an object by ID, or nil
func (g *MemGraph) GetObject(id ObjID) *Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.objects[id]
}

// NumObjects returns the total number of objects
func (g *MemGraph) NumObjects() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// ForEachObject iterates over all objects in ascending ID order. fn must
// not modify the graph.
func (g *MemGraph) ForEachObject(fn func(*Object)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range slices.Sorted(maps.Keys(g.objects)) {
		fn(g.objects[id])
	}
}

// SetRoots sets the measurement roots
func (g *MemGraph) SetRoots(roots Roots) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roots = roots
}

// GetRoots returns the measurement roots
func (g *MemGraph) GetRoots() Roots {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Roots{IDs: slices.Clone(g.roots.IDs)}
}

// TotalSize returns the sum of the shallow sizes of all objects
func TotalSize(g Graph) uint64 {
	var total uint64
	g.ForEachObject(func(obj *Object) {
		total += obj.Size
	})
	return total
}
