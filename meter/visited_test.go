// ABOUTME: Tests for the identity visited set
// ABOUTME: Forces hash collisions and checks span extension and load factor

package meter

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prateek/heapmeter/object"
)

func TestVisitedSetIdentity(t *testing.T) {
	v := newVisitedSet()
	intT, strT := reflect.TypeFor[int](), reflect.TypeFor[string]()

	_, added := v.visit(object.Key{Addr: 0x1000, Type: intT}, 0)
	assert.True(t, added)
	_, added = v.visit(object.Key{Addr: 0x1000, Type: intT}, 0)
	assert.False(t, added, "second visit of the same object")
	_, added = v.visit(object.Key{Addr: 0x1000, Type: strT}, 0)
	assert.True(t, added, "same address with another type is another object")
	_, added = v.visit(object.Key{Addr: 0x1000, Type: intT, Span: true}, 4)
	assert.True(t, added, "spans and instances never collide")
	assert.Equal(t, 3, v.len())
}

func TestVisitedSetSpanExtension(t *testing.T) {
	v := newVisitedSet()
	k := object.Key{Addr: 0x2000, Type: reflect.TypeFor[int64](), Span: true}

	prev, added := v.visit(k, 6)
	assert.True(t, added)
	assert.Zero(t, prev)

	prev, added = v.visit(k, 4)
	assert.False(t, added)
	assert.Equal(t, 6, prev)
	assert.True(t, v.covered(k, 6))
	assert.False(t, v.covered(k, 10))

	prev, added = v.visit(k, 10)
	assert.True(t, added)
	assert.Equal(t, 6, prev)
	assert.True(t, v.covered(k, 10))
	assert.Equal(t, 1, v.len())
}

func TestVisitedSetCollisions(t *testing.T) {
	v := newVisitedSetWithHash(func(uintptr) uint64 { return 7 })
	typ := reflect.TypeFor[int]()

	const n = 500
	for i := 0; i < n; i++ {
		_, added := v.visit(object.Key{Addr: uintptr(i * 8), Type: typ}, 0)
		assert.True(t, added)
	}
	for i := 0; i < n; i++ {
		_, added := v.visit(object.Key{Addr: uintptr(i * 8), Type: typ}, 0)
		assert.False(t, added)
	}
	assert.Equal(t, n, v.len())
	assert.LessOrEqual(t, v.len()*3, len(v.slots))
}

func TestVisitedSetGrowth(t *testing.T) {
	v := newVisitedSet()
	typ := reflect.TypeFor[int]()
	for i := 0; i < 10000; i++ {
		v.visit(object.Key{Addr: uintptr(i) << 4, Type: typ}, 0)
		assert.LessOrEqual(t, v.len()*3, len(v.slots))
	}
	for i := 0; i < 10000; i++ {
		assert.True(t, v.covered(object.Key{Addr: uintptr(i) << 4, Type: typ}, 0))
	}
	assert.False(t, v.covered(object.Key{Addr: 8, Type: typ}, 0))
}
