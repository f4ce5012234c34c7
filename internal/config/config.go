// Package config holds the application configuration, loaded from YAML with
// a defaults -> config.yml -> config.local.yml -> validate lifecycle.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Registry RegistryConfig `yaml:"registry"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Nats     NatsConfig     `yaml:"nats"`
	Producer ProducerConfig `yaml:"producer"`
	Admin    AdminConfig    `yaml:"admin"`
}

// RegistryConfig configures the road-network registry client.
type RegistryConfig struct {
	// BaseURL is the root of the registry API.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single page request. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout"`

	// RetryAttempts bounds retries of a failed request. Defaults to 3.
	RetryAttempts uint `yaml:"retry_attempts"`
}

// MongoConfig configures the progress store backend.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// NatsConfig configures the delivery sink.
type NatsConfig struct {
	URL string `yaml:"url"`

	// AckTimeout bounds the wait for one publication's acknowledgment
	// during a flush. Defaults to 30s.
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// ProducerConfig configures the ingestion state machine.
type ProducerConfig struct {
	// Types lists the monitored object type ids.
	Types []int `yaml:"types"`

	// TickInterval is the scheduling cadence per type. Defaults to 5s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// BackfillBatchSize bounds one backfill page. Defaults to 100.
	BackfillBatchSize int `yaml:"backfill_batch_size"`

	// UpdatesBatchSize bounds one change-log page. Defaults to 100.
	UpdatesBatchSize int `yaml:"updates_batch_size"`

	// EnrichGeometry enables the geometry side lookup on published objects.
	EnrichGeometry bool `yaml:"enrich_geometry"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from configDir/config.yml, overridden by
// configDir/config.local.yml. Missing files are skipped.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	if err := loadFile(configDir+"/config.yml", cfg); err != nil {
		return nil, err
	}
	if err := loadFile(configDir+"/config.local.yml", cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: DefaultLoggingConfig(),
		Registry: RegistryConfig{
			BaseURL:       "https://nvdbapiles.atlas.vegvesen.no/uberiket",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "roadmirror",
		},
		Nats: NatsConfig{
			URL:        "nats://localhost:4222",
			AckTimeout: 30 * time.Second,
		},
		Producer: ProducerConfig{
			Types:             []int{915, 916},
			TickInterval:      5 * time.Second,
			BackfillBatchSize: 100,
			UpdatesBatchSize:  100,
		},
		Admin: AdminConfig{
			Addr: ":8080",
		},
	}
}

// ApplyDefaults fills gaps left by partial YAML overrides.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	if c.Registry.Timeout <= 0 {
		c.Registry.Timeout = 60 * time.Second
	}
	if c.Registry.RetryAttempts == 0 {
		c.Registry.RetryAttempts = 3
	}
	if c.Nats.AckTimeout <= 0 {
		c.Nats.AckTimeout = 30 * time.Second
	}
	if c.Producer.TickInterval <= 0 {
		c.Producer.TickInterval = 5 * time.Second
	}
	if c.Producer.BackfillBatchSize <= 0 {
		c.Producer.BackfillBatchSize = 100
	}
	if c.Producer.UpdatesBatchSize <= 0 {
		c.Producer.UpdatesBatchSize = 100
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":8080"
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry base_url cannot be empty")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri cannot be empty")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database cannot be empty")
	}
	if c.Nats.URL == "" {
		return fmt.Errorf("nats url cannot be empty")
	}
	if len(c.Producer.Types) == 0 {
		return fmt.Errorf("producer types cannot be empty")
	}
	for _, typeID := range c.Producer.Types {
		if typeID <= 0 {
			return fmt.Errorf("invalid producer type id: %d", typeID)
		}
	}
	return nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
