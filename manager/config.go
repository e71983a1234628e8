// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/choria-io/archinstall/cache"
	"github.com/choria-io/archinstall/download"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
	"github.com/choria-io/archinstall/pipeline"
)

//go:embed config_schema.json
var configSchema []byte

const schemaURL = "https://choria.io/schemas/archinstall/config.json"

// CacheConfig is a cache definition along with the archive that populates it
type CacheConfig struct {
	cache.Definition `yaml:",inline"`

	// URL is the archive downloaded when the cache is not ready
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// File is the archive file name, defaults to the last element of the URL path
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// SHA256 is the expected checksum of the archive, verified before extraction when set
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// Validate checks the definition and the optional checksum
func (cc *CacheConfig) Validate() error {
	err := cc.Definition.Validate()
	if err != nil {
		return err
	}

	if cc.SHA256 != "" {
		_, err = pipeline.ParseChecksum(cc.SHA256)
		if err != nil {
			return fmt.Errorf("cache %s: %w", cc.Name, err)
		}
	}

	return nil
}

// Config is the archinstall configuration, usually loaded from a YAML file
type Config struct {
	CacheRoot             string        `json:"cache_root" yaml:"cache_root"`
	TempRoot              string        `json:"temp_root" yaml:"temp_root"`
	LogLevel              string        `json:"log_level" yaml:"log_level"`
	MonitorPort           int           `json:"monitor_port,omitempty" yaml:"monitor_port,omitempty"`
	MinFreeSpace          string        `json:"min_free_space,omitempty" yaml:"min_free_space,omitempty"`
	DisableFreeSpaceCheck bool          `json:"disable_free_space_check,omitempty" yaml:"disable_free_space_check,omitempty"`
	DownloadRetries       int           `json:"download_retries" yaml:"download_retries"`
	Caches                []CacheConfig `json:"caches,omitempty" yaml:"caches,omitempty"`
}

// DefaultConfig is the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		CacheRoot:       filepath.Join(xdg.CacheHome, "archinstall"),
		TempRoot:        os.TempDir(),
		LogLevel:        "warn",
		MinFreeSpace:    humanize.IBytes(iu.FreeSpaceMargin),
		DownloadRetries: download.DefaultRetries,
	}
}

// LoadConfig reads and validates a YAML configuration file, unset values use the defaults
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}

	return cfg, nil
}

// ParseConfig validates YAML against the configuration schema and parses it over the defaults
func ParseConfig(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(b)) == 0 {
		return cfg, nil
	}

	err := validateSchema(b)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateSchema(b []byte) error {
	jb, err := yaml.YAMLToJSON(b)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jb))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(configSchema))
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	err = compiler.AddResource(schemaURL, schemaDoc)
	if err != nil {
		return err
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return err
	}

	err = schema.Validate(instance)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}

	return nil
}

// Validate checks values the schema can not express
func (c *Config) Validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("%w: cache_root is required", model.ErrInvalidArgument)
	}

	if c.TempRoot == "" {
		return fmt.Errorf("%w: temp_root is required", model.ErrInvalidArgument)
	}

	if c.DownloadRetries < 0 {
		return fmt.Errorf("%w: download_retries can not be negative", model.ErrInvalidArgument)
	}

	_, err := c.FreeSpaceMargin()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, cc := range c.Caches {
		err = cc.Validate()
		if err != nil {
			return err
		}

		if seen[cc.Name] {
			return fmt.Errorf("%w: duplicate cache %s", model.ErrInvalidArgument, cc.Name)
		}
		seen[cc.Name] = true
	}

	return nil
}

// FreeSpaceMargin is the parsed min_free_space, -1 when the free space check is disabled
func (c *Config) FreeSpaceMargin() (int64, error) {
	if c.DisableFreeSpaceCheck {
		return -1, nil
	}

	if c.MinFreeSpace == "" {
		return iu.FreeSpaceMargin, nil
	}

	margin, err := humanize.ParseBytes(c.MinFreeSpace)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid min_free_space %q: %w", model.ErrInvalidArgument, c.MinFreeSpace, err)
	}

	return int64(margin), nil
}

// CacheConfig finds a configured cache by name falling back to the built in presets
func (c *Config) CacheConfig(name string) (*CacheConfig, error) {
	for _, cc := range c.Caches {
		if cc.Name == name {
			return &cc, nil
		}
	}

	def, ok := cache.Presets[name]
	if ok {
		return &CacheConfig{Definition: def}, nil
	}

	return nil, fmt.Errorf("%w: %s", model.ErrUnknownCache, name)
}

// SetCacheChecksum sets the expected archive checksum of the named cache, presets are copied
// into the configured caches first
func (c *Config) SetCacheChecksum(name string, sum string) error {
	parsed, err := pipeline.ParseChecksum(sum)
	if err != nil {
		return err
	}

	for i := range c.Caches {
		if c.Caches[i].Name == name {
			c.Caches[i].SHA256 = parsed
			return nil
		}
	}

	cc, err := c.CacheConfig(name)
	if err != nil {
		return err
	}

	cc.SHA256 = parsed
	c.Caches = append(c.Caches, *cc)

	return nil
}

// CacheNames lists configured caches followed by presets not overridden by configuration
func (c *Config) CacheNames() []string {
	var names []string
	seen := map[string]bool{}

	for _, cc := range c.Caches {
		names = append(names, cc.Name)
		seen[cc.Name] = true
	}

	for _, name := range []string{cache.AndroidNativeLibs.Name, cache.AppleFrameworks.Name} {
		if !seen[name] {
			names = append(names, name)
		}
	}

	return names
}
