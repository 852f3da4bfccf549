// ABOUTME: Identity visited set using open addressing over plain addresses
// ABOUTME: Tracks span extents so overlapping slices grow one object instead of two

package meter

import (
	"encoding/binary"
	"reflect"

	"github.com/spaolacci/murmur3"

	"github.com/prateek/heapmeter/object"
)

const minVisitedCapacity = 64

type slot struct {
	addr uintptr
	typ  reflect.Type
	span bool
	used bool
	n    int // counted elements for spans
}

// visitedSet is scoped to one measurement. It stores addresses as uintptr,
// so it neither keeps measured objects alive nor is itself reachable from
// the roots. The table is grown before it is one third full.
type visitedSet struct {
	slots []slot
	count int
	hash  func(uintptr) uint64
}

func newVisitedSet() *visitedSet {
	return newVisitedSetWithHash(murmurAddr)
}

func newVisitedSetWithHash(h func(uintptr) uint64) *visitedSet {
	return &visitedSet{slots: make([]slot, minVisitedCapacity), hash: h}
}

func murmurAddr(a uintptr) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(a))
	return murmur3.Sum64(b[:])
}

// visit registers k with n counted elements. It reports the previously
// counted elements and whether the call added anything: a new object, or
// more elements of a known span.
func (v *visitedSet) visit(k object.Key, n int) (prev int, added bool) {
	i, found := v.find(k)
	if found {
		s := &v.slots[i]
		if !k.Span || n <= s.n {
			return s.n, false
		}
		prev, s.n = s.n, n
		return prev, true
	}
	v.slots[i] = slot{addr: k.Addr, typ: k.Type, span: k.Span, used: true, n: n}
	v.count++
	if v.count*3 > len(v.slots) {
		v.grow()
	}
	return 0, true
}

// covered reports whether k is known with at least n elements
func (v *visitedSet) covered(k object.Key, n int) bool {
	i, found := v.find(k)
	return found && (!k.Span || n <= v.slots[i].n)
}

func (v *visitedSet) len() int { return v.count }

// find returns the slot holding k, or the empty slot where it belongs
func (v *visitedSet) find(k object.Key) (int, bool) {
	mask := len(v.slots) - 1
	i := int(v.hash(k.Addr)) & mask
	for {
		s := &v.slots[i]
		if !s.used {
			return i, false
		}
		if s.addr == k.Addr && s.typ == k.Type && s.span == k.Span {
			return i, true
		}
		i = (i + 1) & mask
	}
}

func (v *visitedSet) grow() {
	old := v.slots
	v.slots = make([]slot, len(old)*2)
	for _, s := range old {
		if !s.used {
			continue
		}
		i, _ := v.find(object.Key{Addr: s.addr, Type: s.typ, Span: s.span})
		v.slots[i] = s
	}
}
