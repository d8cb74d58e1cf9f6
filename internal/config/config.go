// Package config loads application configuration from an optional YAML
// file overlaid with DOCSCHAT_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/docschat/docschat/internal/catalog"
)

const envPrefix = "DOCSCHAT_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Client  ClientConfig  `koanf:"client"`
	Catalog CatalogConfig `koanf:"catalog"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Path is the SQLite database file for transcript recording.
	// Empty disables recording.
	Path string `koanf:"path"`
}

type ClientConfig struct {
	// BaseURL is the API endpoint the terminal client talks to.
	BaseURL string `koanf:"base_url"`
	// Instructions is an optional system prompt sent ahead of the
	// conversation history.
	Instructions string `koanf:"instructions"`
}

// CatalogConfig optionally overrides the built-in provider catalog.
type CatalogConfig struct {
	Providers        []catalog.Provider `koanf:"providers"`
	DefaultSelection catalog.Selection  `koanf:"default_selection"`
}

// Load reads the configuration. path may be empty or name a YAML file;
// a missing file is not an error so the server can run on defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Double underscore separates key segments so snake_case keys
	// survive: DOCSCHAT_CLIENT__BASE_URL -> client.base_url.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 3001)
	}
	if !k.Exists("client.base_url") {
		k.Set("client.base_url", "http://localhost:3001")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// BuildCatalog constructs the catalog store from the configuration,
// falling back to the built-in providers when none are declared.
func (c *Config) BuildCatalog() (*catalog.Store, error) {
	providers := c.Catalog.Providers
	sel := c.Catalog.DefaultSelection
	if len(providers) == 0 {
		providers = catalog.Builtin()
		if sel.ProviderID == "" {
			sel = catalog.BuiltinDefaultSelection()
		}
	}
	return catalog.New(providers, sel)
}
