// ABOUTME: Reference enumerator yielding the outgoing edges of an object lazily
// ABOUTME: Reads reference slots structurally through reflect and raw memory

package object

import (
	"fmt"
	"iter"
	"reflect"
	"unsafe"
)

// Options control which edges the enumerator produces
type Options struct {
	// Elements enables edges from array, map and channel elements
	Elements bool
	// Special resolves weak.Pointer referents through weak.Pointer.Value.
	// Without it weak edges carry a nil target.
	Special bool
	// SliceLength sizes slice targets by length instead of capacity
	SliceLength bool
	// IgnoreMeasurable disables Measurable children enumeration
	IgnoreMeasurable bool
}

// Edges returns the outgoing edges of o in a stable order: declared fields
// for instances, index order for arrays, iteration order for maps.
// The sequence may be consumed once.
func Edges(o Object, opts Options) iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		if o.IsNil() {
			return
		}
		e := enumerator{src: o, opts: opts, yield: yield}
		switch o.kind {
		case Instance:
			if !opts.IgnoreMeasurable && isMeasurable(o.typ) {
				e.measurable()
				return
			}
			e.slots(LayoutOf(o.typ), o.ptr, -1, false)
		case Array:
			if opts.Elements {
				e.array(o.ptr, o.typ, o.n)
			}
		case Map:
			if opts.Elements {
				e.mapEntries()
			}
		case Chan:
			if opts.Elements {
				e.chanBuffer()
			}
		}
	}
}

type enumerator struct {
	src   Object
	opts  Options
	yield func(Edge) bool
	done  bool
}

func (e *enumerator) emit(edge Edge) bool {
	if e.done {
		return false
	}
	edge.Source = e.src
	if !e.yield(edge) {
		e.done = true
	}
	return !e.done
}

// slots emits one edge per reference slot of a value laid out as tl at base
func (e *enumerator) slots(tl *TypeLayout, base unsafe.Pointer, index int, mapKey bool) bool {
	for _, s := range tl.Slots {
		desc := Descriptor{Owner: s.Owner, Field: s.Name, Path: s.Path, Index: index, MapKey: mapKey, Tag: s.Tag}
		if index >= 0 {
			desc.Owner = e.src.typ
		}
		at := unsafe.Add(base, s.Offset)
		if s.Kind == RefInlineArray {
			if !e.opts.Elements {
				continue
			}
			if !e.inlineArray(at, s.Type, desc) {
				return false
			}
			continue
		}
		target, kind, err := decodeSlot(at, s.Type, s.Kind, e.opts)
		if !e.emit(Edge{Descriptor: desc, Target: target, Kind: kind, Err: err}) {
			return false
		}
	}
	return true
}

// inlineArray emits the element slots of an array stored inside another value
func (e *enumerator) inlineArray(at unsafe.Pointer, t reflect.Type, desc Descriptor) bool {
	elem := t.Elem()
	tl := LayoutOf(elem)
	stride := elem.Size()
	for i := 0; i < t.Len(); i++ {
		base := unsafe.Add(at, uintptr(i)*stride)
		for _, s := range tl.Slots {
			d := desc
			d.Path = fmt.Sprintf("%s[%d]", desc.Path, i)
			if s.Path != "" {
				d.Path += "." + s.Path
			}
			slotAt := unsafe.Add(base, s.Offset)
			if s.Kind == RefInlineArray {
				if !e.inlineArray(slotAt, s.Type, d) {
					return false
				}
				continue
			}
			target, kind, err := decodeSlot(slotAt, s.Type, s.Kind, e.opts)
			if !e.emit(Edge{Descriptor: d, Target: target, Kind: kind, Err: err}) {
				return false
			}
		}
	}
	return true
}

func (e *enumerator) array(p unsafe.Pointer, elem reflect.Type, n int) {
	tl := LayoutOf(elem)
	if !tl.HasRefs() {
		return
	}
	stride := elem.Size()
	for i := 0; i < n; i++ {
		if !e.slots(tl, unsafe.Add(p, uintptr(i)*stride), i, false) {
			return
		}
	}
}

func (e *enumerator) mapEntries() {
	mt := e.src.typ
	ktl, vtl := LayoutOf(mt.Key()), LayoutOf(mt.Elem())
	if !ktl.HasRefs() && !vtl.HasRefs() {
		return
	}
	k := reflect.New(mt.Key())
	v := reflect.New(mt.Elem())
	it := e.src.Value().MapRange()
	for i := 0; it.Next(); i++ {
		if ktl.HasRefs() {
			k.Elem().SetIterKey(it)
			if !e.slots(ktl, k.UnsafePointer(), i, true) {
				return
			}
		}
		if vtl.HasRefs() {
			v.Elem().SetIterValue(it)
			if !e.slots(vtl, v.UnsafePointer(), i, false) {
				return
			}
		}
	}
}

func (e *enumerator) chanBuffer() {
	v := e.src.Value()
	if v.Len() == 0 || !LayoutOf(e.src.typ.Elem()).HasRefs() {
		return
	}
	e.emit(Edge{
		Descriptor: Descriptor{Owner: e.src.typ, Index: 0},
		Kind:       RefChan,
		Err:        fmt.Errorf("%w: %d buffered elements of %s", ErrUnsupportedReferenceKind, v.Len(), e.src.typ),
	})
}

func (e *enumerator) measurable() {
	m := reflect.NewAt(e.src.typ, e.src.ptr).Interface().(Measurable)
	m.HeapChildren(func(name string, child any) bool {
		desc := Descriptor{Owner: e.src.typ, Field: name, Path: name, Index: -1}
		var (
			target Object
			err    error
		)
		if child != nil {
			cv := reflect.ValueOf(child)
			switch cv.Kind() {
			case reflect.Pointer, reflect.Slice, reflect.String, reflect.Map, reflect.Chan:
				target, _, err = decodeValue(cv, e.opts.SliceLength)
			default:
				err = fmt.Errorf("%w: measurable child %q of type %s is not a reference", ErrUnsupportedReferenceKind, name, cv.Type())
			}
		}
		return e.emit(Edge{Descriptor: desc, Target: target, Kind: RefCustom, Err: err})
	})
}

// decodeSlot reads the reference stored at p, a slot of type t
func decodeSlot(p unsafe.Pointer, t reflect.Type, kind RefKind, opts Options) (Object, RefKind, error) {
	v := reflect.NewAt(t, p).Elem()
	switch kind {
	case RefWeak:
		return decodeWeak(v, opts)
	case RefInterface:
		return decodeInterface(p, v, opts)
	}
	return decodeValue(v, opts.SliceLength)
}

func decodeWeak(v reflect.Value, opts Options) (Object, RefKind, error) {
	if !isWeakPointer(v.Type()) {
		// a plain reference tagged heapmeter:"weak"
		target, _, err := decodeValue(v, opts.SliceLength)
		return target, RefWeak, err
	}
	if !opts.Special {
		return Object{}, RefWeak, nil
	}
	ref := v.MethodByName("Value").Call(nil)[0]
	target, _, err := decodeValue(ref, opts.SliceLength)
	return target, RefWeak, err
}

// decodeInterface resolves the dynamic value of the interface stored at p.
// Pointer-shaped dynamic values are the reference itself; any other value
// lives in a separate box addressed by the interface's data word.
func decodeInterface(p unsafe.Pointer, v reflect.Value, opts Options) (Object, RefKind, error) {
	if v.IsNil() {
		return Object{}, RefInterface, nil
	}
	dyn := v.Elem()
	dt := dyn.Type()
	if isDirectIface(dt) {
		target, _, err := decodeValue(directWord(dyn), opts.SliceLength)
		return target, RefInterface, err
	}
	data := (*[2]unsafe.Pointer)(p)[1]
	return NewInstance(data, dt), RefInterface, nil
}

// directWord unwraps single-field structs and single-element arrays down to
// the pointer-shaped value they hold.
func directWord(v reflect.Value) reflect.Value {
	for {
		switch v.Kind() {
		case reflect.Struct:
			for i := 0; i < v.NumField(); i++ {
				if v.Type().Field(i).Type.Size() != 0 {
					v = v.Field(i)
					break
				}
			}
		case reflect.Array:
			v = v.Index(0)
		default:
			return v
		}
	}
}

// isDirectIface mirrors the compiler rule for values stored directly in an
// interface's data word instead of in a heap box.
func isDirectIface(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return t.Len() == 1 && isDirectIface(t.Elem())
	case reflect.Struct:
		var only reflect.Type
		for i := 0; i < t.NumField(); i++ {
			ft := t.Field(i).Type
			if ft.Size() == 0 {
				continue
			}
			if only != nil {
				return false
			}
			only = ft
		}
		return only != nil && isDirectIface(only)
	}
	return false
}

// decodeValue resolves a non-interface reference value
func decodeValue(v reflect.Value, sliceLength bool) (Object, RefKind, error) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return Object{}, RefPointer, nil
		}
		return NewInstance(v.UnsafePointer(), v.Type().Elem()), RefPointer, nil
	case reflect.Slice:
		n := v.Cap()
		if sliceLength {
			n = v.Len()
		}
		if v.IsNil() || n == 0 {
			return Object{}, RefSlice, nil
		}
		return NewArray(v.UnsafePointer(), v.Type().Elem(), n), RefSlice, nil
	case reflect.String:
		return NewString(v.String()), RefString, nil
	case reflect.Map:
		if v.IsNil() {
			return Object{}, RefMap, nil
		}
		return Object{ptr: v.UnsafePointer(), typ: v.Type(), kind: Map, n: v.Len()}, RefMap, nil
	case reflect.Chan:
		if v.IsNil() {
			return Object{}, RefChan, nil
		}
		return Object{ptr: v.UnsafePointer(), typ: v.Type(), kind: Chan, n: v.Cap()}, RefChan, nil
	case reflect.Func:
		if v.IsNil() {
			return Object{}, RefFunc, nil
		}
		return Object{}, RefFunc, fmt.Errorf("%w: func value of type %s", ErrUnsupportedReferenceKind, v.Type())
	case reflect.UnsafePointer:
		if v.IsNil() {
			return Object{}, RefUnsafe, nil
		}
		return Object{}, RefUnsafe, fmt.Errorf("%w: unsafe.Pointer", ErrUnsupportedReferenceKind)
	}
	return Object{}, 0, fmt.Errorf("%w: %s", ErrUnsupportedReferenceKind, v.Type())
}
