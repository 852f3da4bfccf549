// ABOUTME: heapmeter command line entry point
// ABOUTME: Wires configuration, .env loading and the doc, paths and layout commands

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/prateek/heapmeter"
	"github.com/prateek/heapmeter/config"
	"github.com/prateek/heapmeter/internal/logger"
)

var log = logger.Logger("cli")

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML configuration file",
		EnvVars: []string{"HEAPMETER_CONFIG"},
	}
	envFileFlag = &cli.StringSliceFlag{
		Name:  "env-file",
		Usage: ".env files loaded before configuration (default ./.env)",
	}
)

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:    "heapmeter",
		Usage:   "Measure the memory footprint of Go object graphs",
		Version: heapmeter.Version,
		Writer:  stdout,
		Flags:   []cli.Flag{configFlag, envFileFlag},
		Before: func(ctx *cli.Context) error {
			if err := config.LoadDotEnv(ctx.StringSlice(envFileFlag.Name)...); err != nil {
				return err
			}
			logger.Reload()
			return nil
		},
		Commands: []*cli.Command{docCommand, pathsCommand, layoutCommand},
	}
}

var (
	strategyFlag = &cli.StringFlag{
		Name:  "strategy",
		Usage: "size strategy or fallback chain (overrides the config file)",
	}
	orderFlag = &cli.StringFlag{
		Name:  "order",
		Usage: "traversal order: depth-first or breadth-first",
	}
	maxObjectsFlag = &cli.Int64Flag{
		Name:  "max-objects",
		Usage: "abort after counting this many objects (0 for no limit)",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "abort each measurement after this long (0 for no limit)",
	}
)

// loadConfig reads the configuration and applies command line overrides
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(strategyFlag.Name) {
		cfg.Strategy = ctx.String(strategyFlag.Name)
	}
	if ctx.IsSet(orderFlag.Name) {
		cfg.Order = ctx.String(orderFlag.Name)
	}
	if ctx.IsSet(maxObjectsFlag.Name) {
		cfg.MaxObjects = ctx.Int64(maxObjectsFlag.Name)
	}
	if ctx.IsSet(timeoutFlag.Name) {
		cfg.Timeout = ctx.Duration(timeoutFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
