// ABOUTME: Measurement result and error sentinels of the traversal engine
// ABOUTME: Caveats collect non-fatal diagnostics combined with multierr

package meter

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
)

// ErrMeasurementAborted is returned when a cap, deadline or cancellation
// stopped a measurement. The accompanying Result is marked Incomplete.
var ErrMeasurementAborted = errors.New("measurement aborted")

// Result is the outcome of one measurement. It is not modified after it
// is returned.
type Result struct {
	// Bytes is the deep (or shallow) size in bytes
	Bytes int64
	// Objects is the number of distinct objects counted
	Objects int64
	// Skipped is the number of roots and edges excluded or unreadable
	Skipped int64
	// Incomplete is set when the traversal stopped early
	Incomplete bool
	// Caveats combines the non-fatal problems met on the way, one per
	// descriptor: unsupported references, guard panics, faults.
	Caveats error
	// Strategy names the size strategy used
	Strategy string
	// Elapsed is the wall time of the measurement
	Elapsed time.Duration
}

// CaveatList returns the individual caveats
func (r *Result) CaveatList() []error {
	return multierr.Errors(r.Caveats)
}

func (r *Result) String() string {
	s := fmt.Sprintf("%s in %d objects (%d skipped, strategy %s)",
		humanize.IBytes(uint64(max(r.Bytes, 0))), r.Objects, r.Skipped, r.Strategy)
	if r.Incomplete {
		s += ", incomplete"
	}
	return s
}
