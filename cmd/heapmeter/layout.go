// ABOUTME: layout command: prints the effective memory layout and strategy availability
// ABOUTME: Resolves heapBytes auto against the host memory before printing

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/prateek/heapmeter/strategy"
)

var layoutCommand = &cli.Command{
	Name:   "layout",
	Usage:  "Print the memory layout and which size strategies are available",
	Action: printLayout,
	Flags:  []cli.Flag{strategyFlag},
}

func printLayout(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	l, err := cfg.MemoryLayout(memory.TotalMemory)
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nhost memory: %s\ncompressed references: %t (reference size %d)\n\n",
		humanize.IBytes(memory.TotalMemory()), l.CompressedReferences(), l.EffectiveReferenceSize())

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Mode", "Strategy", "Status"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, m := range strategy.Modes {
		name, status := "-", "available"
		s, err := strategy.Select(m, l)
		if err != nil {
			status = err.Error()
		} else {
			name = s.Name()
		}
		if string(m) == cfg.Strategy {
			status += " (configured)"
		}
		table.Append([]string{string(m), name, status})
	}
	table.Render()
	return nil
}
