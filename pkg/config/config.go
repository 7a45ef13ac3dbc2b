// Package config loads the project configuration file monopub.toml.
//
// The file is optional and found by walking upward from the target
// directory. It provides defaults for command flags and the upgrade pin
// lists:
//
//	registry = "https://registry.npmjs.org/"
//	tag = "latest"
//	contents = "dist"
//	numeric_pins = ["@types/node"]
//	pinned_names = ["typescript"]
//
//	[[pinned]]
//	name = "react"
//	reason = "waiting for ecosystem"
//
//	[cache]
//	ttl = "1h"
//	url = "redis://localhost:6379/0"
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/monopub/pkg/errors"
)

// FileName is the project config file name.
const FileName = "monopub.toml"

// DefaultNumericPins are dependencies whose bare numeric major requests
// ("18") are treated as intentional pins rather than semver ranges.
var DefaultNumericPins = []string{"@types/node"}

// Pin is a dependency that upgrade must not rewrite.
type Pin struct {
	Name   string `toml:"name"`
	Reason string `toml:"reason"`
}

// Cache configures the dist-tag cache used by upgrade.
type Cache struct {
	TTL string `toml:"ttl"`
	URL string `toml:"url"`
}

// Config is the parsed contents of monopub.toml.
type Config struct {
	// Path is the file the config was read from, or "" for defaults.
	Path string `toml:"-"`

	Registry    string   `toml:"registry"`
	Tag         string   `toml:"tag"`
	Contents    string   `toml:"contents"`
	NumericPins []string `toml:"numeric_pins"`
	Pinned      []Pin    `toml:"pinned"`
	PinnedNames []string `toml:"pinned_names"`
	Cache       Cache    `toml:"cache"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{NumericPins: append([]string(nil), DefaultNumericPins...)}
}

// Load parses the config file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}

	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if !md.IsDefined("numeric_pins") {
		cfg.NumericPins = append([]string(nil), DefaultNumericPins...)
	}
	for i, p := range cfg.Pinned {
		if p.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: pinned entry %d has no name", path, i+1)
		}
	}
	if _, err := cfg.CacheTTL(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s: cache.ttl", path)
	}

	cfg.Path = path
	return cfg, nil
}

// Find loads the nearest monopub.toml at or above basePath, or returns
// Default when there is none.
func Find(basePath string) (*Config, error) {
	dir, err := filepath.Abs(basePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve %s", basePath)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return Load(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// PinnedPackages returns pinned dependency names mapped to their reason,
// which may be empty. Entries from [[pinned]] win over pinned_names.
func (c *Config) PinnedPackages() map[string]string {
	out := make(map[string]string, len(c.Pinned)+len(c.PinnedNames))
	for _, name := range c.PinnedNames {
		out[name] = ""
	}
	for _, p := range c.Pinned {
		out[p.Name] = p.Reason
	}
	return out
}

// CacheTTL parses cache.ttl. An empty value means caching is disabled.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cache.TTL)
}
