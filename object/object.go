// ABOUTME: Core object model: a contiguous heap region identified by address and type
// ABOUTME: Converts measurement roots into objects and derives identity keys

package object

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Kind classifies the shape of an object
type Kind uint8

const (
	// Invalid is the zero Kind, used for nil targets
	Invalid Kind = iota
	// Instance is a single value of its type, the target of a pointer or an interface box
	Instance
	// Array is a run of elements: a slice backing array or the target of a *[N]E
	Array
	// String is the byte array behind a string header
	String
	// Map is a runtime map with its entries
	Map
	// Chan is a runtime channel with its buffer
	Chan
)

var kindNames = [...]string{"invalid", "instance", "array", "string", "map", "chan"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Object is one heap region reached during a measurement.
//
// The unsafe.Pointer keeps the region alive while the object sits in a work
// list; identity keys derived from it hold plain addresses only.
type Object struct {
	ptr  unsafe.Pointer
	typ  reflect.Type // value type for Instance, element type for Array and String, map/chan type otherwise
	kind Kind
	n    int // elements for Array and String, entries for Map, capacity for Chan
}

// Key is the identity of an object. Spans (arrays and strings) are keyed by
// their end address so that sub-slices sharing a backing array and its end
// resolve to the same object.
type Key struct {
	Addr uintptr
	Type reflect.Type
	Span bool
}

// Kind returns the object's shape
func (o Object) Kind() Kind { return o.kind }

// Type returns the value type of an Instance, the element type of a span,
// or the map or channel type.
func (o Object) Type() reflect.Type { return o.typ }

// Len returns the element count of a span, the entry count of a map or the
// capacity of a channel. It is zero for instances.
func (o Object) Len() int { return o.n }

// IsNil reports whether o designates nothing
func (o Object) IsNil() bool { return o.kind == Invalid || o.ptr == nil }

// Addr returns the start address of the object
func (o Object) Addr() uintptr { return uintptr(o.ptr) }

// Pointer returns the start of the object
func (o Object) Pointer() unsafe.Pointer { return o.ptr }

// IsSpan reports whether o is an array or string span
func (o Object) IsSpan() bool { return o.kind == Array || o.kind == String }

// End returns the address one past the last byte of a span, or the start
// address for other kinds.
func (o Object) End() uintptr {
	if o.IsSpan() {
		return uintptr(o.ptr) + uintptr(o.n)*o.typ.Size()
	}
	return uintptr(o.ptr)
}

// Extent returns the address range [start, end) occupied by an instance or
// a span. Maps, channels and zero-size objects have an empty extent.
func (o Object) Extent() (start, end uintptr) {
	if o.IsNil() {
		return 0, 0
	}
	switch o.kind {
	case Instance:
		return uintptr(o.ptr), uintptr(o.ptr) + o.typ.Size()
	case Array, String:
		return uintptr(o.ptr), o.End()
	}
	return 0, 0
}

// Key returns the identity of o
func (o Object) Key() Key {
	if o.IsSpan() {
		return Key{Addr: o.End(), Type: o.typ, Span: true}
	}
	return Key{Addr: uintptr(o.ptr), Type: o.typ}
}

// WithLen returns a copy of a span restricted to its last n elements, keeping
// the same end address.
func (o Object) WithLen(n int) Object {
	if !o.IsSpan() || n >= o.n {
		return o
	}
	if n < 0 {
		n = 0
	}
	skip := uintptr(o.n-n) * o.typ.Size()
	o.ptr = unsafe.Add(o.ptr, skip)
	o.n = n
	return o
}

// Prefix returns the first n elements of a span
func (o Object) Prefix(n int) Object {
	if !o.IsSpan() || n >= o.n {
		return o
	}
	if n <= 0 {
		return Object{}
	}
	o.n = n
	return o
}

// RuntimeSize returns the number of bytes the Go runtime uses for the object
// payload, ignoring allocator rounding. Map and channel headers are not
// included.
func (o Object) RuntimeSize() int64 {
	switch o.kind {
	case Instance:
		return int64(o.typ.Size())
	case Array, String:
		return int64(o.n) * int64(o.typ.Size())
	case Map:
		return int64(o.n) * int64(o.typ.Key().Size()+o.typ.Elem().Size())
	case Chan:
		return int64(o.n) * int64(o.typ.Elem().Size())
	}
	return 0
}

// TypeName returns a package-qualified name for the object's type, used for
// namespace filtering and reports.
func (o Object) TypeName() string {
	switch o.kind {
	case Instance, Map, Chan:
		return TypeName(o.typ)
	case Array:
		return "[]" + TypeName(o.typ)
	case String:
		return "string"
	}
	return "<nil>"
}

// Value returns an addressable view of an Instance, or a map or channel value.
// It returns the zero Value for spans.
func (o Object) Value() reflect.Value {
	switch o.kind {
	case Instance:
		return reflect.NewAt(o.typ, o.ptr).Elem()
	case Map, Chan:
		p := o.ptr
		return reflect.NewAt(o.typ, unsafe.Pointer(&p)).Elem()
	}
	return reflect.Value{}
}

func (o Object) String() string {
	if o.IsNil() {
		return "<nil>"
	}
	if o.IsSpan() {
		return fmt.Sprintf("%s@%#x[%d]", o.TypeName(), o.Addr(), o.n)
	}
	return fmt.Sprintf("%s@%#x", o.TypeName(), o.Addr())
}

// TypeName returns the package-qualified name of a named type, or the
// type's string form for unnamed types.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// NewInstance builds an Instance object for the value of type t at p.
// A pointer to an array type yields an Array span.
func NewInstance(p unsafe.Pointer, t reflect.Type) Object {
	if p == nil {
		return Object{}
	}
	if t.Kind() == reflect.Array {
		return NewArray(p, t.Elem(), t.Len())
	}
	return Object{ptr: p, typ: t, kind: Instance}
}

// NewArray builds an Array span of n elements of type elem starting at p
func NewArray(p unsafe.Pointer, elem reflect.Type, n int) Object {
	if p == nil || n <= 0 {
		return Object{}
	}
	return Object{ptr: p, typ: elem, kind: Array, n: n}
}

var byteType = reflect.TypeFor[byte]()

// NewString builds the String span behind s
func NewString(s string) Object {
	if len(s) == 0 {
		return Object{}
	}
	return Object{ptr: unsafe.Pointer(unsafe.StringData(s)), typ: byteType, kind: String, n: len(s)}
}

// Of converts a measurement root into an Object.
//
// Pointers, slices, strings, maps and channels designate the object they
// refer to. Any other value is copied into a fresh allocation of its own
// type, so a struct passed by value is measured like the struct it copies.
// A nil root yields a nil Object and no error.
func Of(v any) (Object, error) {
	return Root(v, Options{})
}

// Root is Of with the slice accounting of opts applied to slice roots
func Root(v any, opts Options) (Object, error) {
	if v == nil {
		return Object{}, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.String, reflect.Map, reflect.Chan,
		reflect.Func, reflect.UnsafePointer:
		target, _, err := decodeValue(rv, opts.SliceLength)
		return target, err
	}
	box := reflect.New(rv.Type())
	box.Elem().Set(rv)
	return NewInstance(box.UnsafePointer(), rv.Type()), nil
}
