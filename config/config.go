// Package config loads fetch options from YAML or TOML files.
//
// A file holds defaults for a cache plus overrides keyed by glob patterns
// over cache keys:
//
//	defaults:
//	  stale_time: 30s
//	  retry_attempts: 3
//	  retry_delay: 200   # milliseconds
//	queries:
//	  "user:*":
//	    strategy: stale-while-revalidate
//	  "feed:*":
//	    no_cache: true
//
// Unknown keys are rejected in both formats.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	fc "github.com/unkn0wn-root/fetchcache"
	"github.com/unkn0wn-root/fetchcache/retry"
)

type Format uint8

const (
	YAML Format = iota
	TOML
)

// Query is a partial FetchOptions. Nil fields are left untouched.
type Query struct {
	StaleTime     *Duration `yaml:"stale_time" toml:"stale_time"`
	NoCache       *bool     `yaml:"no_cache" toml:"no_cache"`
	RetryAttempts *int      `yaml:"retry_attempts" toml:"retry_attempts"`
	RetryDelay    *Duration `yaml:"retry_delay" toml:"retry_delay"`
	MaxRetryDelay *Duration `yaml:"max_retry_delay" toml:"max_retry_delay"`
	Backoff       *string   `yaml:"backoff" toml:"backoff"`
	Strategy      *string   `yaml:"strategy" toml:"strategy"`
	CacheTime     *Duration `yaml:"cache_time" toml:"cache_time"`
	EnableMetrics *bool     `yaml:"metrics" toml:"metrics"`

	backoff  retry.Backoff
	strategy fc.Strategy
}

type File struct {
	Defaults Query            `yaml:"defaults" toml:"defaults"`
	Queries  map[string]Query `yaml:"queries" toml:"queries"`

	patterns []string // most specific first
}

// Load reads path, choosing the format by extension.
func Load(path string) (*File, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = YAML
	case ".toml":
		format = TOML
	default:
		return nil, fmt.Errorf("config: %s: unsupported extension", path)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: %w", err)
		}
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unknown format %d", format)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if err := f.Defaults.validate(); err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}
	for pattern, q := range f.Queries {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("config: bad pattern %q: %w", pattern, err)
		}
		if err := q.validate(); err != nil {
			return fmt.Errorf("config: queries %q: %w", pattern, err)
		}
		f.Queries[pattern] = q
		f.patterns = append(f.patterns, pattern)
	}
	slices.SortFunc(f.patterns, func(a, b string) int {
		if n := len(b) - len(a); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return nil
}

func (q *Query) validate() error {
	for name, d := range map[string]*Duration{
		"stale_time":      q.StaleTime,
		"retry_delay":     q.RetryDelay,
		"max_retry_delay": q.MaxRetryDelay,
		"cache_time":      q.CacheTime,
	} {
		if d != nil && d.Duration < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if q.RetryAttempts != nil && *q.RetryAttempts < 0 {
		return errors.New("retry_attempts must not be negative")
	}
	if q.Backoff != nil {
		b, err := retry.ParseBackoff(*q.Backoff)
		if err != nil {
			return err
		}
		q.backoff = b
	}
	if q.Strategy != nil {
		s, err := fc.ParseStrategy(*q.Strategy)
		if err != nil {
			return err
		}
		q.strategy = s
	}
	return nil
}

// Apply writes every set field into o.
func (q Query) Apply(o *fc.FetchOptions) {
	if q.StaleTime != nil {
		o.StaleTime = q.StaleTime.Duration
	}
	if q.NoCache != nil {
		o.NoCache = *q.NoCache
	}
	if q.RetryAttempts != nil {
		o.RetryAttempts = *q.RetryAttempts
	}
	if q.RetryDelay != nil {
		o.RetryDelay = q.RetryDelay.Duration
	}
	if q.MaxRetryDelay != nil {
		o.MaxRetryDelay = q.MaxRetryDelay.Duration
	}
	if q.Backoff != nil {
		o.Backoff = q.backoff
	}
	if q.Strategy != nil {
		o.Strategy = q.strategy
	}
	if q.CacheTime != nil {
		o.CacheTime = q.CacheTime.Duration
	}
	if q.EnableMetrics != nil {
		o.EnableMetrics = *q.EnableMetrics
	}
}

// Option returns q as a per-call option.
func (q Query) Option() fc.Option {
	return func(o *fc.FetchOptions) { q.Apply(o) }
}

// FetchOptions returns the file defaults, suitable for Options.Defaults.
func (f *File) FetchOptions() fc.FetchOptions {
	var o fc.FetchOptions
	f.Defaults.Apply(&o)
	return o
}

// Resolve returns the override whose pattern matches key. The longest
// matching pattern wins.
func (f *File) Resolve(key string) (Query, bool) {
	for _, p := range f.patterns {
		if ok, _ := path.Match(p, key); ok {
			return f.Queries[p], true
		}
	}
	return Query{}, false
}

// Options returns the per-call options for key, or nil without a match.
func (f *File) Options(key string) []fc.Option {
	q, ok := f.Resolve(key)
	if !ok {
		return nil
	}
	return []fc.Option{q.Option()}
}
