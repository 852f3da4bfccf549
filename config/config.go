// ABOUTME: Measurement configuration loaded from YAML, .env files and HEAPMETER_* variables
// ABOUTME: Validates settings and converts them to a meter.Spec

// Package config loads measurement settings. Precedence, lowest first:
// defaults, the YAML file, the process environment (which .env files
// populate without overriding variables already set).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prateek/heapmeter/guard"
	"github.com/prateek/heapmeter/internal/logger"
	"github.com/prateek/heapmeter/layout"
	"github.com/prateek/heapmeter/meter"
	"github.com/prateek/heapmeter/strategy"
)

var log = logger.Logger("config")

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all measurement settings
type Config struct {
	Strategy                          string                `yaml:"strategy"`
	ReferencePolicy                   guard.ReferencePolicy `yaml:"referencePolicy"`
	Layout                            *layout.Layout        `yaml:"layout,omitempty"`
	CompressedReferenceThresholdBytes ByteSize              `yaml:"compressedReferenceThresholdBytes"`
	HeapBytes                         HeapBytes             `yaml:"heapBytes"`
	Order                             string                `yaml:"order"`
	SliceMode                         string                `yaml:"sliceMode"`
	MaxObjects                        int64                 `yaml:"maxObjects"`
	Timeout                           time.Duration         `yaml:"timeout"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		Strategy:        string(strategy.ModeBest),
		ReferencePolicy: guard.DefaultReferencePolicy(),
		Order:           meter.DepthFirst.String(),
		SliceMode:       meter.SliceCapacity.String(),
	}
}

// Load reads path (if not empty) over the defaults, applies the
// environment and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debug("config file loaded", "path", path)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges a YAML document into c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks every setting
func (c *Config) Validate() error {
	var errs []error
	if _, err := strategy.ParseMode(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	if _, err := meter.ParseOrder(c.Order); err != nil {
		errs = append(errs, err)
	}
	if _, err := meter.ParseSliceMode(c.SliceMode); err != nil {
		errs = append(errs, err)
	}
	if c.MaxObjects < 0 {
		errs = append(errs, fmt.Errorf("maxObjects %d is negative", c.MaxObjects))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	if c.CompressedReferenceThresholdBytes < 0 {
		errs = append(errs, fmt.Errorf("compressedReferenceThresholdBytes %d is negative", c.CompressedReferenceThresholdBytes))
	}
	if c.Layout != nil {
		if err := c.Layout.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range c.ReferencePolicy.ExcludedFields {
		if f.Type == "" || f.Field == "" {
			errs = append(errs, fmt.Errorf("excluded field %q.%q needs both type and field", f.Type, f.Field))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// MemoryLayout returns the configured layout with the compressed reference
// settings applied. Top-level compressedReferenceThresholdBytes and heapBytes
// override the ones nested under layout when set. hostMemory resolves
// heapBytes: auto and may be nil when auto is not used.
func (c *Config) MemoryLayout(hostMemory func() uint64) (layout.Layout, error) {
	l := layout.Go()
	if c.Layout != nil {
		l = *c.Layout
	}
	if c.CompressedReferenceThresholdBytes != 0 {
		l.CompressedReferenceThreshold = int64(c.CompressedReferenceThresholdBytes)
	}
	if c.HeapBytes != (HeapBytes{}) {
		heap, err := c.HeapBytes.Resolve(hostMemory)
		if err != nil {
			return layout.Layout{}, err
		}
		l.HeapBytes = heap
	}
	return l, l.Validate()
}

// Spec builds the meter spec described by c. extra options are applied
// last, so callers can add listeners or guards.
func (c *Config) Spec(hostMemory func() uint64, extra ...meter.Option) (*meter.Spec, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := strategy.ParseMode(c.Strategy)
	order, _ := meter.ParseOrder(c.Order)
	slices, _ := meter.ParseSliceMode(c.SliceMode)

	l, err := c.MemoryLayout(hostMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	st, err := strategy.Select(mode, l)
	if err != nil {
		return nil, err
	}
	opts := []meter.Option{
		meter.WithStrategy(st),
		meter.WithReferencePolicy(c.ReferencePolicy),
		meter.WithOrder(order),
		meter.WithSliceMode(slices),
		meter.WithMaxObjects(c.MaxObjects),
		meter.WithTimeout(c.Timeout),
	}
	return meter.NewSpec(append(opts, extra...)...)
}
