// ABOUTME: Memory layout model used to estimate object sizes from declared types
// ABOUTME: Holds header sizes, reference width, alignment and compressed reference mode

package layout

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// ErrInvalidLayout is returned by Validate for inconsistent layouts
var ErrInvalidLayout = errors.New("invalid memory layout")

// Layout describes how a runtime lays out objects in memory.
// All sizes are in bytes.
type Layout struct {
	// ObjectHeaderSize is the per-instance header that precedes the fields
	ObjectHeaderSize int64 `yaml:"objectHeaderSize" json:"objectHeaderSize"`

	// ArrayHeaderSize is the header that precedes array, slice and string data
	ArrayHeaderSize int64 `yaml:"arrayHeaderSize" json:"arrayHeaderSize"`

	// ReferenceSize is the width of a pointer word
	ReferenceSize int64 `yaml:"referenceSize" json:"referenceSize"`

	// WordSize is the width of int, uint, uintptr and length words
	WordSize int64 `yaml:"wordSize" json:"wordSize"`

	// ObjectAlignment is the boundary instances are padded to
	ObjectAlignment int64 `yaml:"objectAlignment" json:"objectAlignment"`

	// ArrayAlignment is the boundary arrays and strings are padded to
	ArrayAlignment int64 `yaml:"arrayAlignment" json:"arrayAlignment"`

	// MapHeaderSize is the fixed cost of a map, excluding its entries
	MapHeaderSize int64 `yaml:"mapHeaderSize" json:"mapHeaderSize"`

	// ChanHeaderSize is the fixed cost of a channel, excluding its buffer
	ChanHeaderSize int64 `yaml:"chanHeaderSize" json:"chanHeaderSize"`

	// CompressedReferenceThreshold enables compressed references when the
	// configured heap is smaller than this many bytes. Zero disables it.
	CompressedReferenceThreshold int64 `yaml:"compressedReferenceThresholdBytes" json:"compressedReferenceThresholdBytes"`

	// HeapBytes is the heap size compared against CompressedReferenceThreshold.
	HeapBytes int64 `yaml:"heapBytes" json:"heapBytes"`
}

// Go returns the layout of the running Go runtime: no object headers,
// native pointer width and the allocator's 8 byte minimum alignment.
func Go() Layout {
	word := int64(unsafe.Sizeof(uintptr(0)))
	return Layout{
		ObjectHeaderSize: 0,
		ArrayHeaderSize:  0,
		ReferenceSize:    word,
		WordSize:         word,
		ObjectAlignment:  8,
		ArrayAlignment:   8,
		MapHeaderSize:    6 * word, // runtime map header
		ChanHeaderSize:   12 * word,
	}
}

// Validate checks that alignments are powers of two and sizes are sane
func (l Layout) Validate() error {
	switch {
	case l.ReferenceSize <= 0:
		return fmt.Errorf("%w: reference size %d", ErrInvalidLayout, l.ReferenceSize)
	case l.WordSize <= 0:
		return fmt.Errorf("%w: word size %d", ErrInvalidLayout, l.WordSize)
	case l.ObjectHeaderSize < 0 || l.ArrayHeaderSize < 0 || l.MapHeaderSize < 0 || l.ChanHeaderSize < 0:
		return fmt.Errorf("%w: negative header size", ErrInvalidLayout)
	case !isPowerOfTwo(l.ObjectAlignment):
		return fmt.Errorf("%w: object alignment %d is not a power of two", ErrInvalidLayout, l.ObjectAlignment)
	case !isPowerOfTwo(l.ArrayAlignment):
		return fmt.Errorf("%w: array alignment %d is not a power of two", ErrInvalidLayout, l.ArrayAlignment)
	case l.CompressedReferenceThreshold < 0 || l.HeapBytes < 0:
		return fmt.Errorf("%w: negative heap size or threshold", ErrInvalidLayout)
	}
	return nil
}

// CompressedReferences reports whether references are compressed
func (l Layout) CompressedReferences() bool {
	return l.CompressedReferenceThreshold > 0 && l.HeapBytes > 0 && l.HeapBytes < l.CompressedReferenceThreshold
}

// EffectiveReferenceSize returns the reference width after compression
func (l Layout) EffectiveReferenceSize() int64 {
	if l.CompressedReferences() {
		return l.ReferenceSize / 2
	}
	return l.ReferenceSize
}

// Width returns the number of bytes a value of type t occupies inline,
// as a sum of declared field widths without inter-field padding.
func (l Layout) Width(t reflect.Type) int64 {
	ref := l.EffectiveReferenceSize()
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Complex64:
		return 8
	case reflect.Complex128:
		return 16
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return l.WordSize
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ref
	case reflect.String:
		return ref + l.WordSize
	case reflect.Slice:
		return ref + 2*l.WordSize
	case reflect.Interface:
		return 2 * ref
	case reflect.Array:
		return int64(t.Len()) * l.Width(t.Elem())
	case reflect.Struct:
		var n int64
		for i := 0; i < t.NumField(); i++ {
			n += l.Width(t.Field(i).Type)
		}
		return n
	}
	return 0
}

// InstanceSize is the header plus the given field bytes, padded to object alignment
func (l Layout) InstanceSize(fieldBytes int64) int64 {
	return RoundTo(l.ObjectHeaderSize+fieldBytes, l.ObjectAlignment)
}

// ArraySize is the array header plus length elements, padded to array alignment
func (l Layout) ArraySize(length, elemWidth int64) int64 {
	return RoundTo(l.ArrayHeaderSize+length*elemWidth, l.ArrayAlignment)
}

// String renders the layout the way it is logged at startup
func (l Layout) String() string {
	return fmt.Sprintf("layout[objectHeader=%d arrayHeader=%d reference=%d word=%d alignment=%d/%d compressed=%t]",
		l.ObjectHeaderSize, l.ArrayHeaderSize, l.EffectiveReferenceSize(), l.WordSize,
		l.ObjectAlignment, l.ArrayAlignment, l.CompressedReferences())
}

// RoundTo rounds n up to the next multiple of alignment.
// An alignment of zero or one leaves n unchanged.
func RoundTo(n, alignment int64) int64 {
	if alignment <= 1 {
		return n
	}
	return (n + alignment - 1) &^ (alignment - 1)
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}
