// ABOUTME: Tests for memory reached through interior pointers and overlapping spans
// ABOUTME: Element and field pointers into counted objects add no bytes in either order

package meter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapmeter/object"
)

type record32 struct {
	A, B, C, D int64
}

type keyedIndex struct {
	Items []record32
	ByKey []*record32
}

func newKeyedIndex(n int) *keyedIndex {
	idx := &keyedIndex{Items: make([]record32, n), ByKey: make([]*record32, n)}
	for i := range idx.Items {
		idx.ByKey[i] = &idx.Items[i]
	}
	return idx
}

func TestElementPointersCountedOnce(t *testing.T) {
	items := measure(t, newMeter(t), &keyedIndex{Items: make([]record32, 100)})
	assert.Equal(t, int64(64+16+3200), items.Bytes)

	for _, order := range []Order{DepthFirst, BreadthFirst} {
		t.Run(order.String(), func(t *testing.T) {
			r := measure(t, newMeter(t, WithOrder(order)), newKeyedIndex(100))
			assert.Equal(t, int64(64+16+3200+16+800), r.Bytes)
			assert.Equal(t, int64(3), r.Objects)
		})
	}
}

func TestElementsCountedBeforeTheirArray(t *testing.T) {
	idx := newKeyedIndex(4)
	rec := &absorbLog{}
	m := newMeter(t, WithListener(rec))

	// depth first pops the last root first: the elements are reached
	// through ByKey, then folded into Items
	r := measure(t, m, idx.Items, idx.ByKey)
	assert.Equal(t, int64(16+32)+int64(16+128), r.Bytes)
	assert.Equal(t, int64(2), r.Objects)
	require.Len(t, rec.bytes, 4)
	for _, b := range rec.bytes {
		assert.Equal(t, int64(48), b)
	}
}

type inner struct {
	A, B int64
}

type outer struct {
	In inner
	P  *inner
}

func TestFieldPointerCountedOnce(t *testing.T) {
	o := &outer{}
	o.P = &o.In

	tests := []struct {
		name  string
		roots []any
	}{
		{"enclosing first", []any{o}},
		{"field first", []any{o.P, o}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := measure(t, newMeter(t), tt.roots...)
			assert.Equal(t, int64(16+16+8), r.Bytes)
			assert.Equal(t, int64(1), r.Objects)
		})
	}
}

func TestSliceLengthNestedViews(t *testing.T) {
	backing := make([]int64, 10)
	type views struct {
		A, B []int64
	}

	for _, order := range []Order{DepthFirst, BreadthFirst} {
		t.Run(order.String(), func(t *testing.T) {
			m := newMeter(t, WithOrder(order), WithSliceMode(SliceLength))
			r := measure(t, m, &views{A: backing[:4], B: backing[:8]})
			assert.Equal(t, int64(16+48)+int64(16+64), r.Bytes)
			assert.Equal(t, int64(2), r.Objects)
		})
	}
}

func TestSliceLengthPartialOverlapCountedTwice(t *testing.T) {
	backing := make([]int64, 10)
	type views struct {
		A, B []int64
	}
	m := newMeter(t, WithSliceMode(SliceLength))
	r := measure(t, m, &views{A: backing[:6], B: backing[4:]})
	assert.Equal(t, int64(16+48)+2*int64(16+48), r.Bytes)
	assert.Equal(t, int64(3), r.Objects)
}

type absorbLog struct {
	NopListener
	bytes []int64
}

func (l *absorbLog) Absorbed(_ object.Key, _ object.Object, bytes int64) {
	l.bytes = append(l.bytes, bytes)
}
