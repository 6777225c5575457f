package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config конфигурация приложения
type Config struct {
	ServerPort string `koanf:"server_port"`

	// Кэш
	CacheBackend         string        `koanf:"cache_backend"`
	RedisAddr            string        `koanf:"redis_addr"`
	RedisPassword        string        `koanf:"redis_password"`
	RedisDB              int           `koanf:"redis_db"`
	CacheDataDir         string        `koanf:"cache_data_dir"`
	CacheTimeout         time.Duration `koanf:"cache_timeout"`
	CacheBreakerFailures int           `koanf:"cache_breaker_failures"`
	CacheBreakerTimeout  time.Duration `koanf:"cache_breaker_timeout"`

	// Хранилище обнаружений
	DatabasePath         string        `koanf:"database_path"`
	RepositoryTimeout    time.Duration `koanf:"repository_timeout"`
	ManufacturerRowLimit int           `koanf:"manufacturer_row_limit"`

	// Метрики
	Sensitivity         int           `koanf:"sensitivity"`
	TimeZone            string        `koanf:"time_zone"`
	TopManufacturersTTL time.Duration `koanf:"top_manufacturers_ttl"`

	// Фоновые задачи
	JanitorInterval time.Duration `koanf:"janitor_interval"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server_port":            "8080",
		"cache_backend":          "redis",
		"redis_addr":             "localhost:6379",
		"redis_password":         "",
		"redis_db":               0,
		"cache_data_dir":         "/data/cache",
		"cache_timeout":          "2s",
		"cache_breaker_failures": 5,
		"cache_breaker_timeout":  "30s",
		"database_path":          "/data/sightings.db",
		"repository_timeout":     "3s",
		"manufacturer_row_limit": 100,
		"sensitivity":            -70,
		"time_zone":              "UTC",
		"top_manufacturers_ttl":  "15m",
		"janitor_interval":       "10m",
		"refresh_interval":       "1m",
		"log_level":              "info",
		"log_format":             "json",
	}
}

// Load загружает конфигурацию из environment поверх значений по умолчанию
func Load() (*Config, error) {
	// Разделитель "." чтобы имена с "_" оставались плоскими ключами
	k := koanf.New(".")

	if err := k.Load(&rawProvider{data: defaults()}, nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis cache backend")
		}
	case "bolt":
		if c.CacheDataDir == "" {
			return fmt.Errorf("CACHE_DATA_DIR is required for bolt cache backend")
		}
	case "none":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis, bolt or none; got %q", c.CacheBackend)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.CacheTimeout <= 0 {
		return fmt.Errorf("CACHE_TIMEOUT must be > 0; got %s", c.CacheTimeout)
	}
	if c.RepositoryTimeout <= 0 {
		return fmt.Errorf("REPOSITORY_TIMEOUT must be > 0; got %s", c.RepositoryTimeout)
	}
	if c.CacheBreakerFailures < 1 {
		return fmt.Errorf("CACHE_BREAKER_FAILURES must be >= 1; got %d", c.CacheBreakerFailures)
	}
	if c.ManufacturerRowLimit < 1 {
		return fmt.Errorf("MANUFACTURER_ROW_LIMIT must be >= 1; got %d", c.ManufacturerRowLimit)
	}
	if c.TopManufacturersTTL <= 0 {
		return fmt.Errorf("TOP_MANUFACTURERS_TTL must be > 0; got %s", c.TopManufacturersTTL)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be > 0; got %s", c.JanitorInterval)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be >= 0; got %s", c.RefreshInterval)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE %q: %w", c.TimeZone, err)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of trace,debug,info,warn,error,fatal,panic; got %q", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.LogFormat)
	}
	return nil
}

// Location часовой пояс для границ дней и часов
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// rawProvider реализует koanf.Provider для map[string]interface{}
type rawProvider struct {
	data map[string]interface{}
}

func (r *rawProvider) Read() (map[string]interface{}, error) {
	return r.data, nil
}

func (r *rawProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("rawProvider does not support ReadBytes")
}
