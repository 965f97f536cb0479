// Package config handles configuration loading for cnbtaylor.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CNBTAYLOR"

// Config represents the complete application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Sources  SourcesConfig  `mapstructure:"sources"  yaml:"sources"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Refresh  RefreshConfig  `mapstructure:"refresh"  yaml:"refresh"`
	Web      WebConfig      `mapstructure:"web"      yaml:"web"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Cache backends.
const (
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// CacheConfig selects and configures the snapshot cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"` // "file", "redis", "memory", "none"
	Dir     string        `mapstructure:"dir"     yaml:"dir"`
	TTL     time.Duration `mapstructure:"ttl"     yaml:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"   yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Prefix   string `mapstructure:"prefix"   yaml:"prefix"`
}

// SourcesConfig holds live-source endpoints and client settings.
type SourcesConfig struct {
	Timeout   time.Duration  `mapstructure:"timeout"    yaml:"timeout"`
	Secondary bool           `mapstructure:"secondary"  yaml:"secondary"` // try OECD / IMF / HTML sources after the primary
	UserAgent string         `mapstructure:"user_agent" yaml:"user_agent"`
	CNB       CNBConfig      `mapstructure:"cnb"        yaml:"cnb"`
	Eurostat  EurostatConfig `mapstructure:"eurostat"   yaml:"eurostat"`
	OECD      OECDConfig     `mapstructure:"oecd"       yaml:"oecd"`
	IMF       IMFConfig      `mapstructure:"imf"        yaml:"imf"`
}

// CNBConfig holds the Czech National Bank endpoints.
type CNBConfig struct {
	RateLogURL   string `mapstructure:"rate_log_url"   yaml:"rate_log_url"`
	RateTableURL string `mapstructure:"rate_table_url" yaml:"rate_table_url"`
}

// EurostatConfig holds the Eurostat dissemination API base URL.
type EurostatConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// OECDConfig holds the OECD SDMX REST base URL.
type OECDConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// IMFConfig holds the IMF SDMX 3.0 dataflow base URL.
type IMFConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// PipelineConfig bounds the panel and locates the offline datasets.
type PipelineConfig struct {
	Epoch   string `mapstructure:"epoch"    yaml:"epoch"`   // YYYY-MM-DD
	Horizon string `mapstructure:"horizon"  yaml:"horizon"` // YYYY-MM-DD
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// RefreshConfig schedules periodic refreshes of the panel.
type RefreshConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule"` // cron spec; empty disables
}

// WebConfig locates the static frontend.
type WebConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// EpochDate parses the configured epoch.
func (p PipelineConfig) EpochDate() (civil.Date, error) {
	d, err := civil.ParseDate(p.Epoch)
	if err != nil {
		return civil.Date{}, fmt.Errorf("pipeline.epoch: %w", err)
	}
	return d, nil
}

// HorizonDate parses the configured horizon.
func (p PipelineConfig) HorizonDate() (civil.Date, error) {
	d, err := civil.ParseDate(p.Horizon)
	if err != nil {
		return civil.Date{}, fmt.Errorf("pipeline.horizon: %w", err)
	}
	return d, nil
}

// Addr returns the listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.cnbtaylor/config.yaml (home directory)
//  3. /etc/cnbtaylor/config.yaml (system)
//
// A .env file in the working directory is loaded first. Environment
// variables override config file values.
// Format: CNBTAYLOR_<SECTION>_<KEY>, e.g., CNBTAYLOR_CACHE_TTL
func Load() (*Config, error) {
	loadDotEnv()
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".cnbtaylor"))
	v.AddConfigPath("/etc/cnbtaylor")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheMemory, CacheNone:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	epoch, err := c.Pipeline.EpochDate()
	if err != nil {
		return err
	}
	horizon, err := c.Pipeline.HorizonDate()
	if err != nil {
		return err
	}
	if !epoch.Before(horizon) {
		return fmt.Errorf("pipeline.epoch %s must precede pipeline.horizon %s", epoch, horizon)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Cache defaults
	v.SetDefault("cache.backend", CacheFile)
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "cnbtaylor:")

	// Source defaults
	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.secondary", true)
	v.SetDefault("sources.user_agent", "cnbtaylor/1.0")
	v.SetDefault("sources.cnb.rate_log_url", "https://www.cnb.cz/cs/casto-kladene-dotazy/.galleries/vyvoj_repo_historie.txt")
	v.SetDefault("sources.cnb.rate_table_url", "https://www.cnb.cz/cs/casto-kladene-dotazy/Jak-se-vyvijela-dvoutydenni-repo-sazba-CNB/")
	v.SetDefault("sources.eurostat.base_url", "https://ec.europa.eu/eurostat/api/dissemination/statistics/1.0/data")
	v.SetDefault("sources.oecd.base_url", "https://sdmx.oecd.org/public/rest/data")
	v.SetDefault("sources.imf.base_url", "https://api.imf.org/external/sdmx/3.0/data/dataflow")

	// Pipeline defaults
	v.SetDefault("pipeline.epoch", "2000-01-01")
	v.SetDefault("pipeline.horizon", "2026-12-31")
	v.SetDefault("pipeline.data_dir", "./data")

	// Refresh disabled by default
	v.SetDefault("refresh.schedule", "")

	// Web defaults
	v.SetDefault("web.dir", "./frontend")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if pw := os.Getenv(EnvPrefix + "_CACHE_REDIS_PASSWORD"); pw != "" {
		cfg.Cache.Redis.Password = pw
	}
}

// loadDotEnv loads ./.env if present. Existing variables win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
