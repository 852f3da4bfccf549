// ABOUTME: Allocator sizer reproducing the Go runtime's size-class rounding
// ABOUTME: Small objects round to a size class, large ones to whole pages

package agent

import (
	"fmt"
	"sort"

	"github.com/prateek/heapmeter/object"
)

const (
	pageSize     = 8192
	maxSmallSize = 32768

	// runtime header sizes on 64-bit platforms
	mapHeaderSize  = 48
	chanHeaderSize = 96

	// swiss table groups hold eight slots behind an eight byte control word
	mapGroupSlots = 8
	mapCtrlSize   = 8
)

// sizeClasses are the small object size classes of the Go allocator
var sizeClasses = []int64{
	0, 8, 16, 24, 32, 48, 64, 80, 96, 112, 128, 144, 160, 176, 192, 208, 224, 240, 256,
	288, 320, 352, 384, 416, 448, 480, 512, 576, 640, 704, 768, 896, 1024, 1152, 1280,
	1408, 1536, 1792, 2048, 2304, 2688, 3072, 3200, 3456, 4096, 4864, 5376, 6144, 6528,
	6784, 6912, 8192, 9472, 9728, 10240, 10880, 12288, 13568, 14336, 16384, 18432, 19072,
	20480, 21760, 24576, 27264, 28672, 32768,
}

// Allocator sizes objects the way the Go allocator hands out memory
type Allocator struct{}

func (Allocator) Name() string { return "allocator" }

// ObjectSize returns the allocation size of o. Map sizes are estimated from
// the entry count since table internals are not reachable.
func (Allocator) ObjectSize(o object.Object) (int64, error) {
	if o.IsNil() {
		return 0, nil
	}
	switch o.Kind() {
	case object.Instance, object.Array, object.String:
		return RoundAllocation(o.RuntimeSize()), nil
	case object.Map:
		t := o.Type()
		slot := int64(t.Key().Size() + t.Elem().Size())
		size := RoundAllocation(mapHeaderSize)
		if groups := mapGroups(int64(o.Len())); groups > 0 {
			size += RoundAllocation(groups * (mapCtrlSize + mapGroupSlots*slot))
		}
		return size, nil
	case object.Chan:
		return RoundAllocation(chanHeaderSize + o.RuntimeSize()), nil
	}
	return 0, fmt.Errorf("allocator cannot size %s", o.Kind())
}

// RoundAllocation rounds a requested size up to what the allocator returns
func RoundAllocation(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n > maxSmallSize {
		return (n + pageSize - 1) / pageSize * pageSize
	}
	i := sort.Search(len(sizeClasses), func(i int) bool { return sizeClasses[i] >= n })
	return sizeClasses[i]
}

// mapGroups returns the number of groups a table holding n entries uses at
// a 7/8 maximum load, as a power of two.
func mapGroups(n int64) int64 {
	if n == 0 {
		return 0
	}
	need := (n*8/7 + mapGroupSlots - 1) / mapGroupSlots
	groups := int64(1)
	for groups < need {
		groups <<= 1
	}
	return groups
}
