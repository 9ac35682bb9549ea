// Package config provides configuration management for plantao.
//
// Settings live in ~/.plantao/settings.json as a flat object keyed by the
// same names the environment overrides use, so one vocabulary covers both.
// Environment variables win over the file; the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Defaults.
const (
	DefaultWorkerPort     = 37600
	DefaultRedisAddr      = "localhost:6379"
	DefaultBackendTimeout = 15 // seconds
	DefaultFiscalTimeout  = 30 // seconds
	DefaultSessionTTL     = 36 // hours; a shift never legitimately spans longer
	DefaultLogLevel       = "info"
)

// Config holds all runtime settings.
type Config struct {
	WorkerPort int `json:"PLANTAO_WORKER_PORT"`

	RedisAddr     string `json:"PLANTAO_REDIS_ADDR"`
	RedisPassword string `json:"PLANTAO_REDIS_PASSWORD"`
	SessionTTL    int    `json:"PLANTAO_SESSION_TTL_HOURS"`

	BackendURL     string `json:"PLANTAO_BACKEND_URL"`
	BackendTimeout int    `json:"PLANTAO_BACKEND_TIMEOUT_SECONDS"`

	FiscalURL     string `json:"PLANTAO_FISCAL_URL"`
	FiscalTimeout int    `json:"PLANTAO_FISCAL_TIMEOUT_SECONDS"`

	// PostgresDSN enables the audit ledger when set.
	PostgresDSN string `json:"PLANTAO_POSTGRES_DSN"`

	RulesPath string `json:"PLANTAO_RULES_PATH"`
	LogLevel  string `json:"PLANTAO_LOG_LEVEL"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		WorkerPort:     DefaultWorkerPort,
		RedisAddr:      DefaultRedisAddr,
		SessionTTL:     DefaultSessionTTL,
		BackendTimeout: DefaultBackendTimeout,
		FiscalTimeout:  DefaultFiscalTimeout,
		RulesPath:      RulesPath(),
		LogLevel:       DefaultLogLevel,
	}
}

// DataDir returns the plantao data directory (~/.plantao).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".plantao")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// RulesPath returns the default phrase-rules file path.
func RulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default settings: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll initializes the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file and applies environment overrides. A missing
// or unparseable file yields the defaults: a broken settings file must never
// keep the worker from starting.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", SettingsPath()).Msg("Settings file unparseable, using defaults")
			cfg = Default()
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	applyEnv(cfg)
	normalize(cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := envInt("PLANTAO_WORKER_PORT"); v > 0 {
		cfg.WorkerPort = v
	}
	if v := os.Getenv("PLANTAO_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("PLANTAO_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := envInt("PLANTAO_SESSION_TTL_HOURS"); v > 0 {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("PLANTAO_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := envInt("PLANTAO_BACKEND_TIMEOUT_SECONDS"); v > 0 {
		cfg.BackendTimeout = v
	}
	if v := os.Getenv("PLANTAO_FISCAL_URL"); v != "" {
		cfg.FiscalURL = v
	}
	if v := envInt("PLANTAO_FISCAL_TIMEOUT_SECONDS"); v > 0 {
		cfg.FiscalTimeout = v
	}
	if v := os.Getenv("PLANTAO_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("PLANTAO_RULES_PATH"); v != "" {
		cfg.RulesPath = v
	}
	if v := os.Getenv("PLANTAO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// normalize backfills zero values a sparse settings file may have left.
func normalize(cfg *Config) {
	if cfg.WorkerPort <= 0 {
		cfg.WorkerPort = DefaultWorkerPort
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = DefaultRedisAddr
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = DefaultBackendTimeout
	}
	if cfg.FiscalTimeout <= 0 {
		cfg.FiscalTimeout = DefaultFiscalTimeout
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = RulesPath()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// BackendTimeoutDuration returns the backend timeout as a duration.
func (c *Config) BackendTimeoutDuration() time.Duration {
	return time.Duration(c.BackendTimeout) * time.Second
}

// FiscalTimeoutDuration returns the fiscal timeout as a duration.
func (c *Config) FiscalTimeoutDuration() time.Duration {
	return time.Duration(c.FiscalTimeout) * time.Second
}

// SessionTTLDuration returns the session TTL as a duration.
func (c *Config) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Hour
}

var (
	global     *Config
	globalOnce sync.Once
)

// Get returns the process-wide cached configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Config load failed, using defaults")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetWorkerPort returns the worker port, environment first.
func GetWorkerPort() int {
	if v := envInt("PLANTAO_WORKER_PORT"); v > 0 {
		return v
	}
	return Get().WorkerPort
}

func envInt(key string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
