// Package config loads the server's YAML configuration file, wrapping
// go-ucfg the way this corpus's config packages do: a thin struct
// decode on top of *ucfg.Config, with CLI flags layered on as an
// explicit override step rather than folded into the decode itself.
package config

import (
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"

	"miniredis/internal/logging"
)

// Metrics configures the optional Prometheus HTTP side-channel.
type Metrics struct {
	Enabled bool   `config:"enabled" yaml:"enabled"`
	Addr    string `config:"addr" yaml:"addr"`
}

// Config is the server's full set of tunables.
type Config struct {
	Addr             string           `config:"addr" yaml:"addr"`
	MaxConnections   int              `config:"maxConnections" yaml:"maxConnections"`
	PubSubBufferSize int              `config:"pubsubBufferSize" yaml:"pubsubBufferSize"`
	Logging          logging.Options  `config:"logging" yaml:"logging"`
	Metrics          Metrics          `config:"metrics" yaml:"metrics"`
}

// Default returns the configuration used when no file is given and no
// flags override it.
func Default() Config {
	return Config{
		Addr:             ":6379",
		MaxConnections:   250,
		PubSubBufferSize: 1024,
		Logging:          logging.Options{Stdout: true, Level: "info"},
		Metrics:          Metrics{Enabled: false, Addr: ":9121"},
	}
}

// Load reads path (if non-empty) and unpacks it over Default(). An
// empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return Config{}, err
	}
	if err := raw.Unpack(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
