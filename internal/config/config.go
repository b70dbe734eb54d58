// Package config loads and validates the tool configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/errors"
)

// Config represents the complete tool configuration.
type Config struct {
	// Gateway is the gateway admin API connection.
	Gateway PlaneConfig `yaml:"gateway"`

	// ControlPlane is the control plane API connection.
	ControlPlane PlaneConfig `yaml:"control_plane"`

	// Sync configures reconciliation behavior.
	Sync SyncConfig `yaml:"sync"`

	// Audit configures the sync audit log.
	Audit AuditConfig `yaml:"audit"`
}

// PlaneConfig is the connection configuration for one plane.
type PlaneConfig struct {
	// URL is the base URL of the plane's admin API.
	URL string `yaml:"url"`

	// Token is sent as a bearer token when non-empty. Environment
	// variables in the config file are expanded, so this is usually
	// written as ${KONG_ADMIN_TOKEN} or similar.
	Token string `yaml:"token"`

	// Timeout bounds each API call.
	Timeout time.Duration `yaml:"timeout"`
}

// SyncConfig configures reconciliation behavior.
type SyncConfig struct {
	// KeyField is the field entities are matched on across planes.
	KeyField string `yaml:"key_field"`

	// EntityTypes lists the entity types the tool manages.
	EntityTypes []string `yaml:"entity_types"`

	// ExcludeFields are dropped from drift comparison. Defaults to the
	// plane-assigned metadata fields (id, created_at, updated_at).
	ExcludeFields []string `yaml:"exclude_fields"`

	// CompareFields, when non-empty, restricts drift comparison to
	// these field paths.
	CompareFields []string `yaml:"compare_fields"`
}

// AuditConfig configures the sync audit log.
type AuditConfig struct {
	// Path is the live JSONL audit file. Defaults to the per-user
	// state directory.
	Path string `yaml:"path"`

	// ArchiveDir receives Parquet archives of closed runs.
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveAfter is the age at which a closed run is archived.
	ArchiveAfter time.Duration `yaml:"archive_after"`

	// Compression is the archive compression algorithm:
	// zstd, snappy, gzip, none.
	Compression string `yaml:"compression"`
}

// Load loads configuration from a YAML file. Environment variables in
// the file are expanded before parsing, so secrets stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: PlaneConfig{
			URL:     "http://localhost:8001",
			Timeout: 30 * time.Second,
		},
		ControlPlane: PlaneConfig{
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			KeyField:    "name",
			EntityTypes: []string{"service", "route", "consumer", "plugin", "upstream"},
		},
		Audit: AuditConfig{
			Path:         audit.DefaultPath(),
			ArchiveAfter: 30 * 24 * time.Hour,
			Compression:  "zstd",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	verrs := errors.NewValidationErrors()

	if c.Gateway.URL == "" {
		verrs.AddMissing("gateway.url")
	}
	if c.Gateway.Timeout <= 0 {
		verrs.AddField("gateway.timeout", "must be positive")
	}
	if c.ControlPlane.Timeout <= 0 {
		verrs.AddField("control_plane.timeout", "must be positive")
	}
	if c.Sync.KeyField == "" {
		verrs.AddMissing("sync.key_field")
	}
	if len(c.Sync.EntityTypes) == 0 {
		verrs.AddMissing("sync.entity_types")
	}
	if c.Audit.Path == "" {
		verrs.AddMissing("audit.path")
	}
	if c.Audit.ArchiveAfter < 0 {
		verrs.AddField("audit.archive_after", "must not be negative")
	}
	switch c.Audit.Compression {
	case "", "zstd", "snappy", "gzip", "none":
	default:
		verrs.AddField("audit.compression",
			fmt.Sprintf("unknown algorithm %q", c.Audit.Compression))
	}

	return verrs.Err()
}
