// ABOUTME: Core data types of the attribution graph built from a measurement
// ABOUTME: Defines Object, Ref, ObjID and Roots

// Package graph records the object graph seen by a measurement and answers
// attribution questions over it: who dominates what, how much memory each
// object retains and through which references an object is reachable.
package graph

// ObjID identifies an object within one graph. IDs start at 1; 0 is the
// super-root that points at every root.
type ObjID uint64

// Ref is one labelled reference between two objects
type Ref struct {
	To  ObjID  `json:"to" yaml:"to"`
	Via string `json:"via" yaml:"via"` // field path or element index in the owner
}

// Object is one measured object
type Object struct {
	ID   ObjID  // Unique identifier
	Type string // Type name (e.g. "[]string", "main.Node")
	Size uint64 // Shallow size in bytes
	Refs []Ref  // Outgoing references, in enumeration order
}

// Ptrs returns the IDs referenced by o, in order, duplicates included
func (o *Object) Ptrs() []ObjID {
	ids := make([]ObjID, len(o.Refs))
	for i, r := range o.Refs {
		ids[i] = r.To
	}
	return ids
}

// Roots is the set of measurement roots
type Roots struct {
	IDs []ObjID // Object IDs that are roots
}
