// ABOUTME: paths command: loads a saved report and prints reference paths to the roots
// ABOUTME: Without object IDs it explains the objects retaining the most memory

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/prateek/heapmeter/graph"
	"github.com/prateek/heapmeter/report"
)

var (
	pathsCommand = &cli.Command{
		Name:      "paths",
		Usage:     "Print the reference paths keeping objects of a saved report alive",
		ArgsUsage: "REPORT [ID...]",
		Action:    printPaths,
		Flags:     []cli.Flag{maxPathsFlag, topFlag},
	}
	maxPathsFlag = &cli.IntFlag{
		Name:  "max",
		Usage: "paths printed per object",
		Value: 3,
	}
)

func printPaths(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("need a report file")
	}
	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	rep, err := report.Open(f)
	f.Close()
	if err != nil {
		return err
	}

	var ids []graph.ObjID
	for _, arg := range ctx.Args().Tail() {
		id, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid object id %q", arg)
		}
		ids = append(ids, graph.ObjID(id))
	}
	if len(ids) == 0 {
		for _, n := range rep.Top(ctx.Int(topFlag.Name)) {
			ids = append(ids, n.ID)
		}
	}

	g := rep.Graph()
	out := ctx.App.Writer
	for i, id := range ids {
		n, ok := rep.Node(id)
		if !ok {
			return fmt.Errorf("object #%d not in report", id)
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "#%d %s  retained %s  self %s\n",
			n.ID, n.Type, humanize.IBytes(n.Retained), humanize.IBytes(n.Size))
		paths := graph.PathsToRoots(g, id, ctx.Int(maxPathsFlag.Name))
		if len(paths) == 0 {
			fmt.Fprintln(out, "  unreachable from the roots")
		}
		for _, p := range paths {
			root, _ := rep.Node(p.IDs[len(p.IDs)-1])
			fmt.Fprintf(out, "  %s  (root %s)\n", p, root.Type)
		}
	}
	return nil
}
