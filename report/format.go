// ABOUTME: Registry of report formats with format sniffing on Open
// ABOUTME: Formats write reports; decodable formats also read them back

package report

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/prateek/heapmeter/graph"
)

var (
	// ErrNoFormat is returned when no registered format can decode the input
	ErrNoFormat = errors.New("no format found for report")
	// ErrUnknownFormat is returned by Lookup for an unregistered name
	ErrUnknownFormat = errors.New("unknown report format")
	// ErrInvalidReport is returned when a decoded report is inconsistent
	ErrInvalidReport = errors.New("invalid report")
)

// sniffSize is how much input decoders may look at to detect their format
const sniffSize = 4096

// Format renders reports
type Format interface {
	// Name is the format's registry key, e.g. "json"
	Name() string
	// Write renders rep to w
	Write(w io.Writer, rep *Report) error
}

// Decoder is implemented by formats that can read reports back
type Decoder interface {
	// CanDecode reports whether preview, the head of the input, looks like
	// this format
	CanDecode(preview []byte) bool
	// Decode reads a whole report from r
	Decode(r io.Reader) (*Report, error)
}

type formatRegistry struct {
	mu      sync.RWMutex
	formats []Format
}

var registry = &formatRegistry{}

// Register adds a format. A later registration with the same name replaces
// the earlier one.
func Register(f Format) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for i, old := range registry.formats {
		if old.Name() == f.Name() {
			registry.formats[i] = f
			return
		}
	}
	registry.formats = append(registry.formats, f)
}

// Lookup returns the format registered under name
func Lookup(name string) (Format, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for _, f := range registry.formats {
		if f.Name() == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Names lists the registered format names
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, len(registry.formats))
	for i, f := range registry.formats {
		names[i] = f.Name()
	}
	slices.Sort(names)
	return names
}

// Open reads a report, trying each decodable format in registration order
// against the head of the input
func Open(r io.Reader) (*Report, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	preview, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	registry.mu.RLock()
	var dec Decoder
	for _, f := range registry.formats {
		if d, ok := f.(Decoder); ok && d.CanDecode(preview) {
			dec = d
			break
		}
	}
	registry.mu.RUnlock()

	if dec == nil {
		return nil, ErrNoFormat
	}
	return dec.Decode(br)
}

// normalize orders nodes by ID and checks IDs are set and unique
func (r *Report) normalize() error {
	slices.SortFunc(r.Nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	for i, n := range r.Nodes {
		if n.ID == 0 {
			return fmt.Errorf("%w: node of type %q has no id", ErrInvalidReport, n.Type)
		}
		if i > 0 && r.Nodes[i-1].ID == n.ID {
			return fmt.Errorf("%w: duplicate node id %d", ErrInvalidReport, n.ID)
		}
	}
	if r.Roots == nil {
		r.Roots = []graph.ObjID{}
	}
	return nil
}
