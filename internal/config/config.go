package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/charter/internal/logging"
	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds host settings read from CHARTER_* environment variables.
// Command-line flags override them.
type Config struct {
	Framework string `env:"CHARTER_FRAMEWORK"`
	LogLevel  string `env:"CHARTER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHARTER_LOG_FORMAT" envDefault:"text"`
	Addr      string `env:"CHARTER_ADDR" envDefault:":8080"`

	Store       string        `env:"CHARTER_STORE" envDefault:"memory"`
	SessionDir  string        `env:"CHARTER_SESSION_DIR" envDefault:".charter/sessions"`
	RedisURL    string        `env:"CHARTER_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string        `env:"CHARTER_REDIS_PREFIX" envDefault:"charter:session:"`
	SessionTTL  time.Duration `env:"CHARTER_SESSION_TTL"`

	Executors     string        `env:"CHARTER_EXECUTORS" envDefault:"executors.yaml"`
	ActionTimeout time.Duration `env:"CHARTER_ACTION_TIMEOUT" envDefault:"2m"`
	FailurePolicy string        `env:"CHARTER_FAILURE_POLICY" envDefault:"abort"`

	// EncryptionKey is a hex-encoded AES-256 key. Sessions are sealed at rest when it is set.
	EncryptionKey  string   `env:"CHARTER_ENCRYPTION_KEY"`
	FallbackKeys   []string `env:"CHARTER_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	MaskArtifacts  []string `env:"CHARTER_MASK_ARTIFACTS" envSeparator:","`
	DisableMetrics bool     `env:"CHARTER_DISABLE_METRICS"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings and the key encoding.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, file or redis)", c.Store)
	}
	switch c.FailurePolicy {
	case "abort", "retry":
	default:
		return fmt.Errorf("unknown failure policy %q (want abort or retry)", c.FailurePolicy)
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Keys decodes the active and fallback encryption keys. The active key is nil when unset.
func (c *Config) Keys() ([]byte, [][]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("CHARTER_ENCRYPTION_KEY: %w", err)
	}
	var fallback [][]byte
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("CHARTER_ENCRYPTION_FALLBACK_KEYS[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
