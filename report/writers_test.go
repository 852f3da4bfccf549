// ABOUTME: Tests for the tree and table report writers
// ABOUTME: Checks dominator nesting, depth and child limits and table content

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, f Format, rep *Report) []string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf, rep))
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestTreeWriter(t *testing.T) {
	rep := sample()
	rep.Name = "fixture"
	rep.Caveats = []string{"fault reading main.Node"}

	lines := render(t, Tree{}, rep)
	assert.Equal(t, []string{
		"fixture: 198 B in 5 objects (0 skipped, strategy )",
		"caveat: fault reading main.Node",
		"#1 main.Root  retained 190 B  self 100 B",
		"  .Right #3 main.Node  retained 40 B  self 40 B",
		"  .Left #2 main.Node  retained 30 B  self 30 B",
		"  ~ #4 []byte  retained 20 B  self 20 B",
		"#5 string  retained 8 B  self 8 B",
	}, lines)
}

func TestTreeWriterLimits(t *testing.T) {
	rep := sample()

	lines := render(t, Tree{MaxDepth: 1}, rep)
	assert.Equal(t, []string{
		"measurement: 198 B in 5 objects (0 skipped, strategy )",
		"#1 main.Root  retained 190 B  self 100 B",
		"  ... 3 dominated objects",
		"#5 string  retained 8 B  self 8 B",
	}, lines)

	lines = render(t, Tree{MaxChildren: 1}, rep)
	assert.Equal(t, []string{
		"measurement: 198 B in 5 objects (0 skipped, strategy )",
		"#1 main.Root  retained 190 B  self 100 B",
		"  .Right #3 main.Node  retained 40 B  self 40 B",
		"  ... 2 more objects retaining 50 B",
		"... 1 more objects retaining 8 B",
	}, lines)
}

func TestTreeWriterIncomplete(t *testing.T) {
	rep := sample()
	rep.Incomplete = true
	rep.Strategy = "specification"
	lines := render(t, Tree{}, rep)
	assert.Equal(t, "measurement: 198 B in 5 objects (0 skipped, strategy specification), incomplete", lines[0])
}

func TestTableWriter(t *testing.T) {
	out := strings.Join(render(t, Table{Top: 2}, sample()), "\n")

	assert.Contains(t, out, "main.Root")
	assert.Contains(t, out, "50.5%") // 100 of 198 bytes
	assert.Contains(t, out, "96.0%") // root retains 190 of 198 bytes
	assert.Contains(t, out, "#3")
	assert.NotContains(t, out, "#2 ", "only the top two objects are listed")
	assert.NotContains(t, out, "[]byte", "only the top two types are listed")
}

func TestShare(t *testing.T) {
	assert.Equal(t, "-", share(10, 0))
	assert.Equal(t, "25.0%", share(1, 4))
}
