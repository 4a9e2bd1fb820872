// Package config loads the store configuration file and maps it onto the
// engine options the store opens with.
//
// The file is YAML with one flat block of recognized options:
//
//	dir: /var/lib/keva
//	cache_size: 32        # MiB of LRU block cache
//	block_size: 32        # KiB per SST block
//	write_buffer_size: 64 # MiB per memtable
//	max_open_files: 1000
//	compression: "yes"    # "yes" | "no"
//	binlog: true
//	binlog_capacity: 20000000
//
// Unset fields take the store defaults; unknown fields are rejected so a
// typo never silently disables an option.
package config

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/keva/internal/store"
)

// Config is the on-disk configuration shape. Pointer fields distinguish
// "unset" from an explicit zero.
type Config struct {
	Dir             string  `yaml:"dir"`
	Compression     string  `yaml:"compression"`
	CacheSize       *int    `yaml:"cache_size"`
	BlockSize       *int    `yaml:"block_size"`
	WriteBufferSize *int    `yaml:"write_buffer_size"`
	MaxOpenFiles    *int    `yaml:"max_open_files"`
	BinlogCapacity  *uint64 `yaml:"binlog_capacity"`
	Binlog          *bool   `yaml:"binlog"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates raw YAML configuration bytes.
func Parse(raw []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Dir == "" {
		return fmt.Errorf("config: dir is required")
	}
	if c.Compression != "" && !slices.Contains([]string{"yes", "no"}, c.Compression) {
		return fmt.Errorf("config: compression must be \"yes\" or \"no\", got %q", c.Compression)
	}
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"cache_size", c.CacheSize},
		{"block_size", c.BlockSize},
		{"write_buffer_size", c.WriteBufferSize},
		{"max_open_files", c.MaxOpenFiles},
	} {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", f.name, *f.v)
		}
	}
	return nil
}

// StoreOptions maps the configuration onto store options, filling every
// unset field from the defaults.
func (c *Config) StoreOptions() store.Options {
	opts := store.DefaultOptions()
	if c.Compression != "" {
		opts.Compression = c.Compression
	}
	if c.CacheSize != nil {
		opts.CacheSize = *c.CacheSize
	}
	if c.BlockSize != nil {
		opts.BlockSize = *c.BlockSize
	}
	if c.WriteBufferSize != nil {
		opts.WriteBufferSize = *c.WriteBufferSize
	}
	if c.MaxOpenFiles != nil {
		opts.MaxOpenFiles = *c.MaxOpenFiles
	}
	if c.Binlog != nil {
		opts.Binlog = *c.Binlog
	}
	if c.BinlogCapacity != nil {
		opts.BinlogCapacity = *c.BinlogCapacity
	}
	return opts
}
