package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ciel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://localhost:8001/api" {
		t.Errorf("unexpected base URL: %s", cfg.Upstream.BaseURL)
	}
	if cfg.Browse.PageSize != 9 || cfg.Store.Driver != "sqlite" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
upstream:
  base_url: https://ciel.example.org/api
  timeout: 3s
browse:
  page_size: 12
  categories: [Réseaux, Menaces]
store:
  driver: postgres
  dsn: postgres://u:p@db:5432/ciel
sessions:
  idle_ttl: 2h
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("BROWSE_CATEGORIES", " Menaces , Cryptographie,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("env should override file port, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://ciel.example.org/api" || cfg.Upstream.Timeout != 3*time.Second {
		t.Errorf("file values not applied: %+v", cfg.Upstream)
	}
	if cfg.Upstream.UserAgent != "ciel-content/1.0" {
		t.Errorf("unset file values should keep defaults, got %q", cfg.Upstream.UserAgent)
	}
	if cfg.Browse.PageSize != 12 || cfg.Sessions.IdleTTL != 2*time.Hour {
		t.Errorf("unexpected browse/sessions: %+v %+v", cfg.Browse, cfg.Sessions)
	}
	if strings.Join(cfg.Browse.Categories, "|") != "Menaces|Cryptographie" {
		t.Errorf("unexpected categories: %v", cfg.Browse.Categories)
	}
	if !cfg.Redis.Enabled || cfg.Store.Driver != "postgres" {
		t.Errorf("unexpected redis/store: %+v %+v", cfg.Redis, cfg.Store)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(ConfigPathEnv, writeConfig(t, "logging:\n  level: debug\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Server.Port = 0 },
		"base url":    func(c *Config) { c.Upstream.BaseURL = "" },
		"page size":   func(c *Config) { c.Browse.PageSize = 51 },
		"driver":      func(c *Config) { c.Store.Driver = "mysql" },
		"dsn":         func(c *Config) { c.Store.Driver = "postgres"; c.Store.DSN = "" },
		"redis":       func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" },
		"log level":   func(c *Config) { c.Logging.Level = "loud" },
		"idle ttl":    func(c *Config) { c.Sessions.IdleTTL = 0 },
		"req timeout": func(c *Config) { c.Upstream.Timeout = 0 },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}
