package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tplscope/internal/dedup"
	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
)

// Sink types.
const (
	SinkWriter = "writer"
	SinkRedis  = "redis"
	SinkStore  = "store"
)

// Config is the complete instrumentation configuration.
type Config struct {
	Release     string        `yaml:"release" json:"release,omitempty"`
	Stack       StackConfig   `yaml:"stack" json:"stack"`
	Buffer      BufferConfig  `yaml:"buffer" json:"buffer"`
	Filters     FiltersConfig `yaml:"filters" json:"filters"`
	RootMarkers []string      `yaml:"root_markers" json:"root_markers,omitempty"`
	Metrics     bool          `yaml:"metrics" json:"metrics,omitempty"`
	Sinks       []SinkConfig  `yaml:"sinks" json:"sinks,omitempty"`
}

// StackConfig bounds the evaluation stack.
type StackConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// BufferConfig bounds the per-request log buffer.
type BufferConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// FiltersConfig shapes the rotating deduplication filter group.
type FiltersConfig struct {
	Count       int `yaml:"count" json:"count"`
	RotateEvery int `yaml:"rotate_every" json:"rotate_every"`
}

// SinkConfig describes one delivery target. Which fields apply depends on
// Type.
type SinkConfig struct {
	Type   string `yaml:"type" json:"type"`
	Path   string `yaml:"path" json:"path,omitempty"`
	Addr   string `yaml:"addr" json:"addr,omitempty"`
	DB     int    `yaml:"db" json:"db,omitempty"`
	Key    string `yaml:"key" json:"key,omitempty"`
	MaxLen int64  `yaml:"max_len" json:"max_len,omitempty"`
	TTL    string `yaml:"ttl" json:"ttl,omitempty"`
}

// TTLDuration parses TTL. An empty TTL is zero.
func (s SinkConfig) TTLDuration() (time.Duration, error) {
	if s.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(s.TTL)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Stack:   StackConfig{Capacity: engine.DefaultStackCapacity},
		Buffer:  BufferConfig{Capacity: engine.DefaultBufferCapacity},
		Filters: FiltersConfig{Count: dedup.DefaultGroupSize, RotateEvery: dedup.DefaultRotateEvery},
	}
}

// Load reads, decodes and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration. Omitted settings keep
// their defaults; an empty document yields Default().
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options maps the configuration onto controller options.
func (c *Config) Options() []engine.Option {
	return []engine.Option{
		engine.WithStackCapacity(c.Stack.Capacity),
		engine.WithBufferCapacity(c.Buffer.Capacity),
		engine.WithFilterGroup(c.Filters.Count, c.Filters.RotateEvery),
		engine.WithRelease(c.Release),
		engine.WithPathNormalizer(record.PathNormalizer{RootMarkers: c.RootMarkers}),
	}
}
