package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("CacheBackend: got %q", cfg.CacheBackend)
	}
	if cfg.Sensitivity != -70 {
		t.Errorf("Sensitivity: got %d", cfg.Sensitivity)
	}
	if cfg.RepositoryTimeout != 3*time.Second {
		t.Errorf("RepositoryTimeout: got %s", cfg.RepositoryTimeout)
	}
	if cfg.CacheTimeout != 2*time.Second {
		t.Errorf("CacheTimeout: got %s", cfg.CacheTimeout)
	}
	if cfg.TopManufacturersTTL != 15*time.Minute {
		t.Errorf("TopManufacturersTTL: got %s", cfg.TopManufacturersTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "bolt")
	t.Setenv("CACHE_DATA_DIR", "/tmp/cache")
	t.Setenv("SENSITIVITY", "-85")
	t.Setenv("REPOSITORY_TIMEOUT", "4s")
	t.Setenv("TIME_ZONE", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheBackend != "bolt" || cfg.CacheDataDir != "/tmp/cache" {
		t.Errorf("cache: got %q %q", cfg.CacheBackend, cfg.CacheDataDir)
	}
	if cfg.Sensitivity != -85 {
		t.Errorf("Sensitivity: got %d", cfg.Sensitivity)
	}
	if cfg.RepositoryTimeout != 4*time.Second {
		t.Errorf("RepositoryTimeout: got %s", cfg.RepositoryTimeout)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location: got %s", cfg.Location())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"zero repository timeout", map[string]string{"REPOSITORY_TIMEOUT": "0s"}},
		{"bad time zone", map[string]string{"TIME_ZONE": "Mars/Olympus"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"zero row limit", map[string]string{"MANUFACTURER_ROW_LIMIT": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
