// Package config loads the optional YAML settings file and merges it with
// CLI flag overrides, CLI flags always winning.
package config

import (
	"os"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/log"
	"gopkg.in/yaml.v3"
)

// Provider selects which BucketSource implementation the store uses.
type Provider string

const (
	ProviderJSON   Provider = "json"
	ProviderBinary Provider = "binary"
)

// Config holds the tunable settings of a homeledger process.
type Config struct {
	MaxActiveItems int      `yaml:"maxActiveItems"`
	Provider       Provider `yaml:"provider"`
	LogLevel       log.Level `yaml:"logLevel"`
	LogJSON        bool     `yaml:"logJSON"`
}

// Default returns the settings used when no config file and no flags
// override them.
func Default() Config {
	return Config{
		MaxActiveItems: 500,
		Provider:       ProviderJSON,
		LogLevel:       log.InfoLevel,
		LogJSON:        false,
	}
}

// Load reads a YAML config file at path. A missing file is not an error;
// Default() is returned unchanged so that all settings remain CLI-flag
// controlled.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errs.Wrap(errs.IO, "read config file", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Wrap(errs.InvalidData, "parse config file", err)
	}
	return cfg, nil
}

// Overrides carries the subset of Config fields a caller explicitly set on
// the command line. Merge only applies fields marked present.
type Overrides struct {
	MaxActiveItems *int
	Provider       *Provider
	LogLevel       *log.Level
	LogJSON        *bool
}

// Merge applies o on top of cfg, CLI flags taking precedence over the file.
func Merge(cfg Config, o Overrides) Config {
	if o.MaxActiveItems != nil {
		cfg.MaxActiveItems = *o.MaxActiveItems
	}
	if o.Provider != nil {
		cfg.Provider = *o.Provider
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
	if o.LogJSON != nil {
		cfg.LogJSON = *o.LogJSON
	}
	return cfg
}
