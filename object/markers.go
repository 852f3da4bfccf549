// ABOUTME: Opt-in interfaces types implement to change how they are measured
// ABOUTME: Unmetered excludes a type, Measurable enumerates children explicitly

package object

import "reflect"

// Unmetered is implemented by types that must never be measured, such as
// shared registries or handles to resources owned elsewhere.
type Unmetered interface {
	Unmetered()
}

// Measurable is implemented by types that hide references from reflection
// (behind unsafe.Pointer or uintptr, for example) and can report them.
// HeapChildren calls yield for every child until yield returns false.
// Children must be pointers, slices, strings, maps or channels.
type Measurable interface {
	HeapChildren(yield func(name string, child any) bool)
}

var (
	unmeteredType  = reflect.TypeFor[Unmetered]()
	measurableType = reflect.TypeFor[Measurable]()
)

// IsUnmetered reports whether t or *t implements Unmetered
func IsUnmetered(t reflect.Type) bool {
	if t == nil {
		return false
	}
	return t.Implements(unmeteredType) || (t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(unmeteredType))
}

func isMeasurable(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(measurableType)
}
