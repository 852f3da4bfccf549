// ABOUTME: Edge and descriptor types produced by the reference enumerator
// ABOUTME: Describes which field or element of a source object designates a target

package object

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnsupportedReferenceKind marks a reference slot whose target cannot be
// classified safely, such as a closure or an unsafe.Pointer.
var ErrUnsupportedReferenceKind = errors.New("unsupported reference kind")

// RefKind is the static shape of the slot an edge was read from
type RefKind uint8

const (
	RefPointer RefKind = iota + 1
	RefSlice
	RefString
	RefMap
	RefChan
	RefInterface
	RefFunc
	RefUnsafe
	// RefWeak is a weak.Pointer or a field tagged heapmeter:"weak"
	RefWeak
	// RefInlineArray is an array stored inline whose elements hold references
	RefInlineArray
	// RefCustom is a child reported by a Measurable implementation
	RefCustom
)

var refKindNames = map[RefKind]string{
	RefPointer:     "pointer",
	RefSlice:       "slice",
	RefString:      "string",
	RefMap:         "map",
	RefChan:        "chan",
	RefInterface:   "interface",
	RefFunc:        "func",
	RefUnsafe:      "unsafe.Pointer",
	RefWeak:        "weak",
	RefInlineArray: "array",
	RefCustom:      "custom",
}

func (k RefKind) String() string {
	if s, ok := refKindNames[k]; ok {
		return s
	}
	return "ref(" + strconv.Itoa(int(k)) + ")"
}

// Tag holds the flags parsed from a heapmeter struct tag
type Tag uint8

const (
	// TagUnmetered excludes the field's target from measurement (heapmeter:"-")
	TagUnmetered Tag = 1 << iota
	// TagWeak marks the field as a non-owning reference (heapmeter:"weak")
	TagWeak
)

// Has reports whether all flags in f are set
func (t Tag) Has(f Tag) bool { return t&f == f }

func parseTag(st reflect.StructTag) Tag {
	v, ok := st.Lookup("heapmeter")
	if !ok {
		return 0
	}
	var t Tag
	for _, part := range strings.Split(v, ",") {
		switch strings.TrimSpace(part) {
		case "-":
			t |= TagUnmetered
		case "weak":
			t |= TagWeak
		}
	}
	return t
}

// Descriptor identifies where in its source an edge was found
type Descriptor struct {
	// Owner is the struct type declaring the field, or the container type
	// for elements.
	Owner reflect.Type
	// Field is the declared field name; empty for container elements
	Field string
	// Path is the dotted path from the source object to the slot
	Path string
	// Index is the element index, or -1 for fields
	Index int
	// MapKey is true when the slot belongs to a map entry's key
	MapKey bool
	// Tag holds the field's heapmeter tag flags
	Tag Tag
}

// IsElement reports whether the edge comes from an array, map or channel element
func (d Descriptor) IsElement() bool { return d.Index >= 0 }

func (d Descriptor) String() string {
	var b strings.Builder
	if d.Index >= 0 {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(d.Index))
		if d.Owner != nil && d.Owner.Kind() == reflect.Map {
			if d.MapKey {
				b.WriteString(" key")
			} else {
				b.WriteString(" value")
			}
		}
		b.WriteByte(']')
		if d.Path != "" {
			b.WriteByte('.')
		}
	}
	b.WriteString(d.Path)
	if b.Len() == 0 {
		return "*"
	}
	return b.String()
}

// Edge is a (source, descriptor, target) triple. A nil Target contributes
// nothing and is never traversed. Err is set when the slot could not be
// classified; the target is then nil.
type Edge struct {
	Source     Object
	Descriptor Descriptor
	Target     Object
	Kind       RefKind
	Err        error
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s", e.Source.TypeName(), e.Descriptor, e.Target)
}
