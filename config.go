package bkv

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes where and how to open a Store. The zero value plus a Path
// is a valid configuration. It can also be loaded from a YAML file, see
// LoadConfig.
type Config struct {
	// Path is the store location: a data file for the bolt engine, unused by
	// the memory engine.
	Path string `yaml:"path"`

	// Engine selects the underlying engine: "bolt" (default) or "memory".
	Engine string `yaml:"engine"`

	// Buckets declares buckets up front. Declared partitions are created at
	// Open, and declared key widths are validated when the bucket is opened.
	// Undeclared buckets can still be opened on demand.
	Buckets []BucketConfig `yaml:"buckets"`

	// NoSync skips fsync on commit, trading durability for speed. Commits
	// remain atomic.
	NoSync bool `yaml:"no_sync"`

	// ReadOnly opens the store for reading only; WriteTxn fails with
	// ErrReadOnly.
	ReadOnly bool `yaml:"read_only"`

	// Compression names the value codec applied by the engine: "none"
	// (default), "snappy", "lz4" or "zstd". Pick once per store: a store
	// written with compression on must be reopened with compression on.
	Compression string `yaml:"compression"`

	// InitialMmapSize overrides the engine's initial mmap size in bytes.
	InitialMmapSize int `yaml:"initial_mmap_size"`
}

// BucketConfig declares one bucket.
type BucketConfig struct {
	Name string `yaml:"name"`

	// KeyWidth, when nonzero, requires the bucket's key encoding to produce
	// exactly this many bytes per key.
	KeyWidth int `yaml:"key_width"`

	// Comparator names the key ordering. Only "bytewise" is supported; the
	// engines order keys by raw bytes and anything else would break the
	// integer key contract.
	Comparator string `yaml:"comparator"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("bkv: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("bkv: config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.Engine {
	case "", "bolt":
		if cfg.Path == "" {
			return fmt.Errorf("bkv: config: path is required for the bolt engine")
		}
	case "memory":
	default:
		return fmt.Errorf("bkv: config: unknown engine %q", cfg.Engine)
	}
	if _, err := codecByName(cfg.Compression); err != nil {
		return err
	}
	seen := make(map[string]bool, len(cfg.Buckets))
	for i := range cfg.Buckets {
		b := &cfg.Buckets[i]
		if b.Name == "" {
			return fmt.Errorf("bkv: config: bucket %d has no name", i)
		}
		if strings.ContainsRune(b.Name, 0) {
			return fmt.Errorf("bkv: config: bucket name %q contains NUL", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("bkv: config: duplicate bucket %q", b.Name)
		}
		seen[b.Name] = true
		if b.KeyWidth < 0 {
			return fmt.Errorf("bkv: config: bucket %q has negative key width", b.Name)
		}
		switch b.Comparator {
		case "", "bytewise":
		default:
			return fmt.Errorf("bkv: config: bucket %q: unsupported comparator %q", b.Name, b.Comparator)
		}
	}
	return nil
}
