// ABOUTME: Built-in guards for metadata, namespaces, weak referents, fields and markers
// ABOUTME: Each guard excludes one class of objects or edges

package guard

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/prateek/heapmeter/object"
)

// metadataPackages hold runtime type metadata and runtime internals
var metadataPackages = []string{"reflect", "internal/abi", "runtime"}

// TypeMetadata excludes type descriptors and runtime internals reached
// through reflect.Type values or similar.
type TypeMetadata struct{}

func (TypeMetadata) Name() string { return "type-metadata" }

func (TypeMetadata) SkipObject(o object.Object) bool {
	if o.IsNil() {
		return false
	}
	pkg := o.Type().PkgPath()
	if pkg == "" && o.Kind() == object.Instance && o.Type().Kind() == reflect.Pointer {
		pkg = o.Type().Elem().PkgPath()
	}
	for _, m := range metadataPackages {
		if pkg == m || strings.HasPrefix(pkg, m+"/") {
			return true
		}
	}
	return false
}

func (TypeMetadata) SkipEdge(object.Edge) bool { return false }

// Boundary excludes objects whose type name starts with one of Prefixes.
// Names are package-qualified, as returned by object.TypeName.
type Boundary struct {
	Prefixes []string
}

func (Boundary) Name() string { return "namespace-boundary" }

func (Boundary) leading() {}

func (b Boundary) SkipObject(o object.Object) bool {
	if o.IsNil() || len(b.Prefixes) == 0 {
		return false
	}
	elem, full := object.TypeName(o.Type()), o.TypeName()
	for _, p := range b.Prefixes {
		if strings.HasPrefix(elem, p) || strings.HasPrefix(full, p) {
			return true
		}
	}
	return false
}

func (Boundary) SkipEdge(object.Edge) bool { return false }

// WeakReferents excludes the targets of weak.Pointer values and of fields
// tagged heapmeter:"weak".
type WeakReferents struct{}

func (WeakReferents) Name() string { return "weak-referents" }

func (WeakReferents) SkipObject(object.Object) bool { return false }

func (WeakReferents) SkipEdge(e object.Edge) bool { return e.Kind == object.RefWeak }

// FieldRef names a field of a type: Type is package-qualified, Field is the
// field name or its dotted path within the flattened type.
type FieldRef struct {
	Type  string `yaml:"type" json:"type"`
	Field string `yaml:"field" json:"field"`
}

// ExcludedFields skips edges read from the listed fields
type ExcludedFields struct {
	Fields []FieldRef
}

func (ExcludedFields) Name() string { return "excluded-fields" }

func (ExcludedFields) SkipObject(object.Object) bool { return false }

func (x ExcludedFields) SkipEdge(e object.Edge) bool {
	d := e.Descriptor
	if d.Owner == nil || d.Field == "" {
		return false
	}
	owner := object.TypeName(d.Owner)
	for _, f := range x.Fields {
		if f.Type == owner && (f.Field == d.Field || f.Field == d.Path) {
			return true
		}
	}
	return false
}

// Unmetered skips fields tagged heapmeter:"-" and objects whose type
// implements object.Unmetered.
type Unmetered struct{}

func (Unmetered) Name() string { return "unmetered" }

func (Unmetered) SkipObject(o object.Object) bool {
	return o.Kind() == object.Instance && object.IsUnmetered(o.Type())
}

func (Unmetered) SkipEdge(e object.Edge) bool {
	return e.Descriptor.Tag.Has(object.TagUnmetered)
}

// Statics excludes a fixed set of shared objects such as package-level
// singletons, identified by address.
type Statics struct {
	keys map[object.Key]struct{}
}

// NewStatics builds a Statics guard from the given values. Values that do
// not designate an object are ignored.
func NewStatics(values ...any) Statics {
	s := Statics{keys: make(map[object.Key]struct{}, len(values))}
	for _, v := range values {
		o, err := object.Of(v)
		if err != nil || o.IsNil() {
			continue
		}
		s.keys[o.Key()] = struct{}{}
	}
	return s
}

// KnownSingletons returns process-wide objects shared by everything that
// uses them.
func KnownSingletons() []any {
	return []any{os.Stdin, os.Stdout, os.Stderr, time.Local, time.UTC}
}

func (Statics) Name() string { return "statics" }

func (s Statics) SkipObject(o object.Object) bool {
	if o.IsNil() {
		return false
	}
	_, ok := s.keys[o.Key()]
	return ok
}

func (Statics) SkipEdge(object.Edge) bool { return false }

// BoxedScalars excludes numbers and booleans stored in interfaces. Small
// values share preallocated boxes in the runtime.
type BoxedScalars struct{}

func (BoxedScalars) Name() string { return "boxed-scalars" }

func (BoxedScalars) SkipObject(object.Object) bool { return false }

func (BoxedScalars) SkipEdge(e object.Edge) bool {
	return e.Kind == object.RefInterface && e.Target.Kind() == object.Instance && object.IsScalar(e.Target.Type())
}
