// ABOUTME: HEAPMETER_* environment overrides and .env file loading
// ABOUTME: Environment values take precedence over the YAML file

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv
const (
	EnvStrategy             = "HEAPMETER_STRATEGY"
	EnvOrder                = "HEAPMETER_ORDER"
	EnvSliceMode            = "HEAPMETER_SLICE_MODE"
	EnvMaxObjects           = "HEAPMETER_MAX_OBJECTS"
	EnvTimeout              = "HEAPMETER_TIMEOUT"
	EnvHeapBytes            = "HEAPMETER_HEAP_BYTES"
	EnvCompressedThreshold  = "HEAPMETER_COMPRESSED_REFERENCE_THRESHOLD"
	EnvFollowStatics        = "HEAPMETER_FOLLOW_STATICS"
	EnvFollowArrays         = "HEAPMETER_FOLLOW_ARRAYS"
	EnvFollowSpecial        = "HEAPMETER_FOLLOW_SPECIAL"
	EnvSkipBoxedScalars     = "HEAPMETER_SKIP_BOXED_SCALARS"
	EnvExcludedTypePrefixes = "HEAPMETER_EXCLUDED_TYPE_PREFIXES"
)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. With no paths it loads
// ./.env. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Debug("env file loaded", "path", p)
	}
	return nil
}

// ApplyEnv overrides settings from HEAPMETER_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(EnvStrategy, &c.Strategy)
	str(EnvOrder, &c.Order)
	str(EnvSliceMode, &c.SliceMode)
	if v, ok := lookup(EnvMaxObjects); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvMaxObjects, err))
		} else {
			c.MaxObjects = n
		}
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvTimeout, err))
		} else {
			c.Timeout = d
		}
	}
	if v, ok := lookup(EnvHeapBytes); ok {
		h, err := ParseHeapBytes(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvHeapBytes, err))
		} else {
			c.HeapBytes = h
		}
	}
	if v, ok := lookup(EnvCompressedThreshold); ok {
		n, err := ParseByteSize(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvCompressedThreshold, err))
		} else {
			c.CompressedReferenceThresholdBytes = n
		}
	}
	boolean(EnvFollowStatics, &c.ReferencePolicy.FollowStatics)
	boolean(EnvFollowArrays, &c.ReferencePolicy.FollowArrays)
	boolean(EnvFollowSpecial, &c.ReferencePolicy.FollowSpecial)
	boolean(EnvSkipBoxedScalars, &c.ReferencePolicy.SkipBoxedScalars)
	if v, ok := lookup(EnvExcludedTypePrefixes); ok {
		c.ReferencePolicy.ExcludedTypePrefixes = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.ReferencePolicy.ExcludedTypePrefixes = append(c.ReferencePolicy.ExcludedTypePrefixes, p)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
