// ABOUTME: Tests for the memory layout model
// ABOUTME: Covers rounding, declared widths, compressed references and validation

package layout

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jvmLike() Layout {
	return Layout{
		ObjectHeaderSize: 16,
		ArrayHeaderSize:  16,
		ReferenceSize:    8,
		WordSize:         8,
		ObjectAlignment:  8,
		ArrayAlignment:   8,
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		n, align, want int64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
		{5, 0, 5},
		{5, 1, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundTo(tt.n, tt.align), "RoundTo(%d, %d)", tt.n, tt.align)
	}
}

func TestWidth(t *testing.T) {
	l := jvmLike()

	type inner struct {
		a int32
		b *int
	}

	tests := []struct {
		name string
		typ  reflect.Type
		want int64
	}{
		{"bool", reflect.TypeFor[bool](), 1},
		{"int16", reflect.TypeFor[int16](), 2},
		{"float32", reflect.TypeFor[float32](), 4},
		{"int64", reflect.TypeFor[int64](), 8},
		{"complex128", reflect.TypeFor[complex128](), 16},
		{"int", reflect.TypeFor[int](), 8},
		{"pointer", reflect.TypeFor[*int](), 8},
		{"map", reflect.TypeFor[map[string]int](), 8},
		{"string", reflect.TypeFor[string](), 16},
		{"slice", reflect.TypeFor[[]byte](), 24},
		{"interface", reflect.TypeFor[any](), 16},
		{"array", reflect.TypeFor[[3]int16](), 6},
		{"struct", reflect.TypeFor[inner](), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Width(tt.typ))
		})
	}
}

func TestCompressedReferences(t *testing.T) {
	l := jvmLike()
	l.CompressedReferenceThreshold = 32 << 30

	l.HeapBytes = 0
	assert.False(t, l.CompressedReferences(), "unknown heap size never compresses")
	assert.Equal(t, int64(8), l.EffectiveReferenceSize())

	l.HeapBytes = 4 << 30
	assert.True(t, l.CompressedReferences())
	assert.Equal(t, int64(4), l.EffectiveReferenceSize())
	assert.Equal(t, int64(4), l.Width(reflect.TypeFor[*int]()))
	assert.Equal(t, int64(12), l.Width(reflect.TypeFor[string]()), "length word is not compressed")

	l.HeapBytes = 64 << 30
	assert.False(t, l.CompressedReferences())
}

func TestSizes(t *testing.T) {
	l := jvmLike()
	assert.Equal(t, int64(24), l.InstanceSize(8))
	assert.Equal(t, int64(16), l.InstanceSize(0))
	assert.Equal(t, int64(96), l.ArraySize(10, 8))
	assert.Equal(t, int64(24), l.ArraySize(3, 1))
}

func TestGoLayout(t *testing.T) {
	l := Go()
	require.NoError(t, l.Validate())
	assert.Equal(t, int64(unsafe.Sizeof(uintptr(0))), l.ReferenceSize)
	assert.Zero(t, l.ObjectHeaderSize)
	assert.Contains(t, l.String(), "compressed=false")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"zero reference", func(l *Layout) { l.ReferenceSize = 0 }},
		{"zero word", func(l *Layout) { l.WordSize = 0 }},
		{"negative header", func(l *Layout) { l.ObjectHeaderSize = -1 }},
		{"odd alignment", func(l *Layout) { l.ObjectAlignment = 12 }},
		{"zero array alignment", func(l *Layout) { l.ArrayAlignment = 0 }},
		{"negative heap", func(l *Layout) { l.HeapBytes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := jvmLike()
			tt.mutate(&l)
			assert.ErrorIs(t, l.Validate(), ErrInvalidLayout)
		})
	}
	assert.NoError(t, jvmLike().Validate())
}
