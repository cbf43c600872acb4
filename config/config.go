// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/deliverytrack/engine/core/engine"
	"github.com/deliverytrack/engine/infra/kafka"
	"github.com/deliverytrack/engine/infra/metrics"
	"github.com/deliverytrack/engine/infra/mqtt"
	"github.com/deliverytrack/engine/jobs"
)

type Config struct {
	Kafka      kafka.Config   `json:"kafka"`
	MQTT       mqtt.Config    `json:"mqtt"`
	Store      StoreConfig    `json:"store"`
	Metrics    metrics.Config `json:"metrics"`
	Engine     engine.Config  `json:"engine"`
	Reconciler jobs.Config    `json:"reconciler"`
}

// StoreConfig selects the persistence backend. The memory backend exists for
// local runs and simulation; postgres is the production backend.
type StoreConfig struct {
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
}

// SetDefaults fills zero values with sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks backend selection.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: postgres backend requires a dsn")
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// Load reads the file at path, applies DT_-prefixed environment overrides
// (DT_KAFKA__BROKERS maps to kafka.brokers) and fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dt_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Kafka.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Engine.SetDefaults()
	cfg.Reconciler.SetDefaults()
	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
