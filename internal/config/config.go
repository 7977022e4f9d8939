// Package config provides layered configuration for the daemon and CLI:
// built-in defaults, an optional YAML file, environment variables, and
// finally command-line flags.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"libresync.yaml",
	"libresync.yml",
	"/etc/libresync/libresync.yaml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all settings of the daemon and CLI.
type Config struct {
	LinkUp   LinkUpConfig   `koanf:"linkup"`
	Store    StoreConfig    `koanf:"store"`
	Health   HealthConfig   `koanf:"health"`
	Wearable WearableConfig `koanf:"wearable"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// LinkUpConfig configures the LibreLinkUp API client.
type LinkUpConfig struct {
	// URL is the regional API base, e.g. https://api-us.libreview.io.
	URL string `koanf:"url" validate:"required,url"`
	// Version is sent as the "version" header on every request.
	Version string `koanf:"version" validate:"required"`
	// Product is sent as the "product" header on every request.
	Product string `koanf:"product" validate:"required"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// RatePerMinute caps outbound requests to the cloud.
	RatePerMinute int `koanf:"rate_per_minute" validate:"gte=1"`
	// RateBurst is the allowed burst above the steady rate.
	RateBurst int `koanf:"rate_burst" validate:"gte=1"`
}

// StoreConfig configures the encrypted credential store.
type StoreConfig struct {
	// Path is the directory holding the store database.
	Path string `koanf:"path" validate:"required"`
	// Secret is the master secret the sealing key is derived from.
	Secret string `koanf:"secret" validate:"required,min=16"`
}

// HealthConfig configures the local health store.
type HealthConfig struct {
	// DatabaseDSN is the Postgres connection string. The daemon requires
	// it; the CLI only needs it for foreground sync runs.
	DatabaseDSN string `koanf:"database_dsn"`
	// Origin is recorded on every reading as the writing application.
	Origin string `koanf:"origin" validate:"required"`
	// Retention drops readings older than this window; zero keeps forever.
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
	// CleanerInterval is how often the retention pass runs.
	CleanerInterval time.Duration `koanf:"cleaner_interval" validate:"gt=0"`
}

// WearableConfig configures the best-effort reading mirror.
type WearableConfig struct {
	Enabled bool `koanf:"enabled"`
	// URL of the NATS server the mirror publishes through.
	URL string `koanf:"url" validate:"omitempty,url"`
	// Subject the reading payload is published on.
	Subject string `koanf:"subject"`
	// Timeout bounds each publish attempt.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// SyncConfig configures the recurring sync job.
type SyncConfig struct {
	// Interval between sync runs.
	Interval time.Duration `koanf:"interval" validate:"gte=1m"`
}

// ServerConfig configures the operational HTTP endpoint.
type ServerConfig struct {
	// Addr is the listen address (ip:port).
	Addr string `koanf:"addr" validate:"required"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required"`
}

// defaultConfig returns the built-in defaults, applied before file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		LinkUp: LinkUpConfig{
			URL:           "https://api-us.libreview.io",
			Version:       "4.16.0",
			Product:       "llu.ios",
			Timeout:       30 * time.Second,
			RatePerMinute: 10,
			RateBurst:     5,
		},
		Store: StoreConfig{
			Path:   "data/credstore",
			Secret: "",
		},
		Health: HealthConfig{
			DatabaseDSN:     "",
			Origin:          "libresync",
			Retention:       0,
			CleanerInterval: time.Hour,
		},
		Wearable: WearableConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "wearable.glucose",
			Timeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			Interval: 15 * time.Minute,
		},
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
		Logging: LoggingConfig{
			Level: "Info",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Wearable.Enabled {
		if c.Wearable.URL == "" {
			return fmt.Errorf("wearable.url is required when the mirror is enabled")
		}
		if c.Wearable.Subject == "" {
			return fmt.Errorf("wearable.subject is required when the mirror is enabled")
		}
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, highest layer last. An empty path triggers the
// default search (CONFIG_PATH, then DefaultConfigPaths).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is the daemon entry point: it reads the -config, -a and -d flags,
// loads the layered configuration and applies flag overrides on top.
// Configuration errors are fatal here, matching daemon startup semantics.
func Parse() *Config {
	var (
		configPath string
		addr       string
		dsn        string
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&configPath, "c", "", "path to config file (shorthand)")
	flag.StringVar(&addr, "a", "", "operational server address (ip:port)")
	flag.StringVar(&dsn, "d", "", "health store database DSN")
	flag.Parse()

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dsn != "" {
		cfg.Health.DatabaseDSN = dsn
	}
	return cfg
}

// findConfigFile returns the first existing config file, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings binds environment variable names to config paths. Unmapped
// variables are ignored so unrelated environment noise cannot leak in.
var envMappings = map[string]string{
	"linkup_url":             "linkup.url",
	"linkup_version":         "linkup.version",
	"linkup_product":         "linkup.product",
	"linkup_timeout":         "linkup.timeout",
	"linkup_rate_per_minute": "linkup.rate_per_minute",
	"linkup_rate_burst":      "linkup.rate_burst",

	"store_path":   "store.path",
	"store_secret": "store.secret",

	"database_dsn":            "health.database_dsn",
	"health_origin":           "health.origin",
	"health_retention":        "health.retention",
	"health_cleaner_interval": "health.cleaner_interval",

	"wearable_enabled": "wearable.enabled",
	"wearable_url":     "wearable.url",
	"wearable_subject": "wearable.subject",
	"wearable_timeout": "wearable.timeout",

	"sync_interval": "sync.interval",

	"server_address": "server.addr",

	"log_level": "logging.level",
}

// envTransform maps an environment variable name to its config path, or
// empty to skip it.
func envTransform(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
