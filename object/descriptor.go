// ABOUTME: Flattened per-type field descriptors built once and cached
// ABOUTME: Embedded and nested structs are expanded into leaf fields and reference slots

package object

import (
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DescriptorCacheSize bounds the number of types whose layouts are cached
const DescriptorCacheSize = 4096

// Field is one leaf of a flattened type: a scalar, a reference or an
// inline array. Nested structs never appear as fields, their leaves do.
type Field struct {
	Owner  reflect.Type // declaring struct, nil when the type itself is the leaf
	Name   string
	Path   string
	Index  []int // reflect field index path from the flattened type
	Offset uintptr
	Type   reflect.Type
	Tag    Tag
}

// Slot is a field that may hold a reference
type Slot struct {
	Field
	Kind RefKind
}

// TypeLayout is the flattened description of a type
type TypeLayout struct {
	Type   reflect.Type
	Fields []Field
	Slots  []Slot
}

// HasRefs reports whether values of the type can reference other objects
func (tl *TypeLayout) HasRefs() bool { return len(tl.Slots) > 0 }

var descriptors = mustCache()

func mustCache() *lru.Cache[reflect.Type, *TypeLayout] {
	c, err := lru.New[reflect.Type, *TypeLayout](DescriptorCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// LayoutOf returns the flattened layout of t, building and caching it on
// first use. It is safe for concurrent use.
func LayoutOf(t reflect.Type) *TypeLayout {
	if tl, ok := descriptors.Get(t); ok {
		return tl
	}
	tl := buildLayout(t)
	descriptors.Add(t, tl)
	return tl
}

func buildLayout(t reflect.Type) *TypeLayout {
	tl := &TypeLayout{Type: t}
	if t.Kind() != reflect.Struct || isWeakPointer(t) {
		tl.add(Field{Type: t})
		return tl
	}

	type seenKey struct {
		owner  reflect.Type
		name   string
		offset uintptr
	}
	seen := make(map[seenKey]bool)

	var walk func(st reflect.Type, base uintptr, prefix string, index []int)
	walk = func(st reflect.Type, base uintptr, prefix string, index []int) {
		for i := 0; i < st.NumField(); i++ {
			sf := st.Field(i)
			if sf.Type.Size() == 0 {
				continue
			}
			k := seenKey{st, sf.Name, base + sf.Offset}
			if seen[k] {
				continue
			}
			seen[k] = true

			path := prefix + sf.Name
			idx := append(index[:len(index):len(index)], i)
			if sf.Type.Kind() == reflect.Struct && !isWeakPointer(sf.Type) {
				walk(sf.Type, base+sf.Offset, path+".", idx)
				continue
			}
			tl.add(Field{
				Owner:  st,
				Name:   sf.Name,
				Path:   path,
				Index:  idx,
				Offset: base + sf.Offset,
				Type:   sf.Type,
				Tag:    parseTag(sf.Tag),
			})
		}
	}
	walk(t, 0, "", nil)
	return tl
}

func (tl *TypeLayout) add(f Field) {
	tl.Fields = append(tl.Fields, f)
	if k, ok := slotKind(f.Type, f.Tag); ok {
		tl.Slots = append(tl.Slots, Slot{Field: f, Kind: k})
	}
}

// slotKind classifies a leaf type, reporting false for scalars and for
// inline arrays without references.
func slotKind(t reflect.Type, tag Tag) (RefKind, bool) {
	if isWeakPointer(t) || tag.Has(TagWeak) {
		return RefWeak, true
	}
	switch t.Kind() {
	case reflect.Pointer:
		return RefPointer, true
	case reflect.Slice:
		return RefSlice, true
	case reflect.String:
		return RefString, true
	case reflect.Map:
		return RefMap, true
	case reflect.Chan:
		return RefChan, true
	case reflect.Interface:
		return RefInterface, true
	case reflect.Func:
		return RefFunc, true
	case reflect.UnsafePointer:
		return RefUnsafe, true
	case reflect.Array:
		if t.Len() > 0 && LayoutOf(t.Elem()).HasRefs() {
			return RefInlineArray, true
		}
	}
	return 0, false
}

// isWeakPointer reports whether t is an instantiation of weak.Pointer
func isWeakPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.PkgPath() == "weak" && strings.HasPrefix(t.Name(), "Pointer[")
}

// IsScalar reports whether t is a boolean or numeric type
func IsScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
