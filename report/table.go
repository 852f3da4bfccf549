// ABOUTME: Table report writer built on tablewriter
// ABOUTME: Prints a per-type summary and the objects retaining the most bytes

package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Table prints two tables: bytes by type and the top objects by retained
// size
type Table struct {
	// Top is the number of objects and types listed. Zero lists all.
	Top int
}

func (Table) Name() string { return "table" }

func (t Table) Write(w io.Writer, rep *Report) error {
	bw := bufio.NewWriter(w)
	writeSummary(bw, rep)
	fmt.Fprintln(bw)

	types := rep.ByType()
	if t.Top > 0 && len(types) > t.Top {
		types = types[:t.Top]
	}
	table := tablewriter.NewWriter(bw)
	table.SetHeader([]string{"Type", "Objects", "Bytes", "Share"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	for _, s := range types {
		table.Append([]string{s.Type, humanize.Comma(int64(s.Objects)), humanize.IBytes(s.Bytes), share(s.Bytes, rep.Bytes)})
	}
	table.Render()
	fmt.Fprintln(bw)

	table = tablewriter.NewWriter(bw)
	table.SetHeader([]string{"ID", "Type", "Self", "Retained", "Share"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	for _, n := range rep.Top(t.Top) {
		table.Append([]string{
			"#" + strconv.FormatUint(uint64(n.ID), 10), n.Type,
			humanize.IBytes(n.Size), humanize.IBytes(n.Retained), share(n.Retained, rep.Bytes),
		})
	}
	table.Render()
	return bw.Flush()
}

func share(part uint64, total int64) string {
	if total <= 0 {
		return "-"
	}
	return strconv.FormatFloat(100*float64(part)/float64(total), 'f', 1, 64) + "%"
}

func init() {
	Register(Table{Top: 20})
}
