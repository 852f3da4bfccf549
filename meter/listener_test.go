// ABOUTME: Recording listener shared by the engine tests
// ABOUTME: Captures traversal events as strings in delivery order

package meter

import (
	"fmt"

	"github.com/prateek/heapmeter/object"
)

type recorder struct {
	NopListener
	events []string
	grown  []int64
}

func (r *recorder) Started(roots []object.Object) {
	r.events = append(r.events, fmt.Sprintf("started %d", len(roots)))
}

func (r *recorder) Followed(e object.Edge) {
	r.events = append(r.events, "followed "+e.Descriptor.String())
}

func (r *recorder) Visited(o object.Object, size int64, via object.Edge) {
	from := "root"
	if !via.Source.IsNil() {
		from = via.Descriptor.String()
	}
	r.events = append(r.events, fmt.Sprintf("visited %s %d via %s", o.TypeName(), size, from))
}

func (r *recorder) Grown(_ object.Object, delta int64) {
	r.grown = append(r.grown, delta)
}

func (r *recorder) Done(res *Result) {
	r.events = append(r.events, fmt.Sprintf("done %d", res.Bytes))
}
