// ABOUTME: Byte-size settings accepting plain numbers or humanized strings
// ABOUTME: HeapBytes also accepts "auto", resolved from host memory by the caller

package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes written as 1073741824, "1GiB" or "32 GB"
type ByteSize int64

// ParseByteSize parses a byte count or a humanized size
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

func (b ByteSize) MarshalYAML() (any, error) {
	return int64(b), nil
}

func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.IBytes(uint64(b))
}

// HeapBytes is the heap size compared against the compressed reference
// threshold. Auto asks the host for its physical memory.
type HeapBytes struct {
	Auto  bool
	Bytes ByteSize
}

// ErrNoHostMemory is returned when heapBytes is auto but no host memory
// source is available
var ErrNoHostMemory = errors.New("heapBytes is auto but host memory is unknown")

// ParseHeapBytes parses "auto" or a size
func ParseHeapBytes(s string) (HeapBytes, error) {
	if strings.EqualFold(strings.TrimSpace(s), "auto") {
		return HeapBytes{Auto: true}, nil
	}
	n, err := ParseByteSize(s)
	if err != nil {
		return HeapBytes{}, err
	}
	if n < 0 {
		return HeapBytes{}, fmt.Errorf("heapBytes %d is negative", n)
	}
	return HeapBytes{Bytes: n}, nil
}

func (h *HeapBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseHeapBytes(node.Value)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h HeapBytes) MarshalYAML() (any, error) {
	if h.Auto {
		return "auto", nil
	}
	return int64(h.Bytes), nil
}

// Resolve returns the heap size in bytes, asking hostMemory when Auto
func (h HeapBytes) Resolve(hostMemory func() uint64) (int64, error) {
	if !h.Auto {
		return int64(h.Bytes), nil
	}
	if hostMemory == nil {
		return 0, ErrNoHostMemory
	}
	n := hostMemory()
	if n == 0 {
		return 0, ErrNoHostMemory
	}
	log.Debug("heap size resolved from host memory", "bytes", n)
	return int64(min(n, math.MaxInt64)), nil
}

func (h HeapBytes) String() string {
	if h.Auto {
		return "auto"
	}
	return h.Bytes.String()
}
