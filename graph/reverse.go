// ABOUTME: Builds reverse edges for graph traversal
// ABOUTME: Maps objects to their referrers for paths-to-roots

package graph

// Referrer is an incoming reference
type Referrer struct {
	From ObjID
	Via  string
}

// ReverseEdges maps each object to the objects that point to it
type ReverseEdges map[ObjID][]Referrer

// BuildReverseEdges creates a map of reverse edges. Referrers appear in
// ascending ID order of the referring object.
func BuildReverseEdges(g Graph) ReverseEdges {
	reverse := make(ReverseEdges)
	g.ForEachObject(func(obj *Object) {
		for _, ref := range obj.Refs {
			reverse[ref.To] = append(reverse[ref.To], Referrer{From: obj.ID, Via: ref.Via})
		}
	})
	return reverse
}
