// ABOUTME: doc command: decodes JSON and YAML documents and measures their in-memory size
// ABOUTME: Runs documents concurrently and prints one report per document in argument order

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/prateek/heapmeter/agent"
	"github.com/prateek/heapmeter/graph"
	"github.com/prateek/heapmeter/meter"
	"github.com/prateek/heapmeter/metrics"
	"github.com/prateek/heapmeter/report"
)

var (
	docCommand = &cli.Command{
		Name:      "doc",
		Usage:     "Decode documents and report the memory their values occupy",
		ArgsUsage: "FILE... (- for stdin)",
		Action:    measureDocs,
		Flags: []cli.Flag{
			formatFlag, depthFlag, topFlag, saveFlag, metricsFlag, jobsFlag, instrumentFlag,
			strategyFlag, orderFlag, maxObjectsFlag, timeoutFlag,
		},
	}
	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "report format: tree, table, json or yaml",
		Value:   "tree",
	}
	depthFlag = &cli.IntFlag{
		Name:  "depth",
		Usage: "levels printed by the tree format",
		Value: 8,
	}
	topFlag = &cli.IntFlag{
		Name:  "top",
		Usage: "children per object (tree) or rows (table) printed",
		Value: 20,
	}
	saveFlag = &cli.StringFlag{
		Name:  "save",
		Usage: "directory receiving one JSON report per document",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics",
		Usage: "write Prometheus metrics in text format to this file",
	}
	jobsFlag = &cli.IntFlag{
		Name:  "jobs",
		Usage: "documents measured concurrently",
		Value: 4,
	}
	instrumentFlag = &cli.BoolFlag{
		Name:  "instrument",
		Usage: "install the allocator agent so sizes include size-class rounding",
	}
)

func measureDocs(ctx *cli.Context) error {
	files := ctx.Args().Slice()
	if len(files) == 0 {
		return errors.New("need at least one document")
	}
	format, err := reportFormat(ctx)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.Bool(instrumentFlag.Name) {
		if err := agent.Install(agent.Options{}); err != nil && !errors.Is(err, agent.ErrAlreadyInstalled) {
			return err
		}
	}
	base, err := cfg.Spec(memory.TotalMemory)
	if err != nil {
		return err
	}

	var (
		reg       *prometheus.Registry
		listeners []meter.Listener
	)
	if ctx.IsSet(metricsFlag.Name) {
		reg = prometheus.NewRegistry()
		ml, err := metrics.New(reg, metrics.Opts{})
		if err != nil {
			return err
		}
		listeners = append(listeners, ml)
	}

	reports := make([]*report.Report, len(files))
	g, gctx := errgroup.WithContext(ctx.Context)
	g.SetLimit(max(ctx.Int(jobsFlag.Name), 1))
	for i, file := range files {
		g.Go(func() error {
			doc, err := readDocument(file, ctx.App.Reader)
			if err != nil {
				return err
			}
			rec := graph.NewRecorder()
			sp, err := base.With(meter.WithListener(meter.Listeners(append([]meter.Listener{rec}, listeners...)...)))
			if err != nil {
				return err
			}
			m, err := meter.New(sp)
			if err != nil {
				return err
			}
			if _, err := m.Measure(gctx, doc); err != nil && !errors.Is(err, meter.ErrMeasurementAborted) {
				return fmt.Errorf("%s: %w", file, err)
			}
			rep := report.FromRecorder(rec)
			rep.Name = file
			reports[i] = rep
			log.Debug("document measured", "file", file, "bytes", rep.Bytes, "objects", rep.Objects)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := ctx.App.Writer
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := format.Write(out, rep); err != nil {
			return err
		}
		if dir := ctx.String(saveFlag.Name); dir != "" {
			if err := saveReport(dir, rep); err != nil {
				return err
			}
		}
	}
	if reg != nil {
		if err := prometheus.WriteToTextfile(ctx.String(metricsFlag.Name), reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func reportFormat(ctx *cli.Context) (report.Format, error) {
	switch name := ctx.String(formatFlag.Name); name {
	case "tree":
		return report.Tree{MaxDepth: ctx.Int(depthFlag.Name), MaxChildren: ctx.Int(topFlag.Name)}, nil
	case "table":
		return report.Table{Top: ctx.Int(topFlag.Name)}, nil
	default:
		return report.Lookup(name)
	}
}

// readDocument decodes a JSON or YAML file into generic Go values. YAML is
// chosen by extension; other input is JSON when it starts with { or [.
func readDocument(file string, stdin io.Reader) (any, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, err
	}

	var doc any
	ext := strings.ToLower(filepath.Ext(file))
	trimmed := bytes.TrimSpace(data)
	isJSON := ext == ".json" || (ext != ".yaml" && ext != ".yml" && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['))
	if isJSON {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	return doc, nil
}

func saveReport(dir string, rep *report.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(rep.Name), filepath.Ext(rep.Name))
	if rep.Name == "-" {
		name = "stdin"
	}
	f, err := os.Create(filepath.Join(dir, name+".report.json"))
	if err != nil {
		return err
	}
	if err := (report.JSON{}).Write(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
