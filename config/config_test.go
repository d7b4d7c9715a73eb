package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("MARKETVIEW_SYMBOL", "")
	path := writeTempConfig(t, `marketview:
  name: "TestApp"
  version: "1.0"
stream:
  symbol: "ETHUSDT"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MarketView.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.MarketView.Name)
	}
	if cfg.Stream.Symbol != "ethusdt" {
		t.Errorf("symbol not normalised: %s", cfg.Stream.Symbol)
	}
	if cfg.Stream.Reconnect.BaseDelay != time.Second || cfg.Stream.Reconnect.MaxDelay != 30*time.Second {
		t.Errorf("unexpected reconnect defaults: %+v", cfg.Stream.Reconnect)
	}
	if cfg.Stream.Reconnect.MaxAttempts != 10 {
		t.Errorf("unexpected max attempts: %d", cfg.Stream.Reconnect.MaxAttempts)
	}
	if cfg.Stream.StartDelay != 100*time.Millisecond {
		t.Errorf("unexpected start delay: %v", cfg.Stream.StartDelay)
	}
	if cfg.Tape.Capacity != 100 {
		t.Errorf("unexpected tape capacity: %d", cfg.Tape.Capacity)
	}
	if cfg.Notifications.DefaultTTL != 5*time.Second {
		t.Errorf("unexpected default ttl: %v", cfg.Notifications.DefaultTTL)
	}
}

func TestLoadConfigShippedFile(t *testing.T) {
	cfg, err := LoadConfig("config.yml")
	if err != nil {
		t.Fatalf("LoadConfig(config.yml): %v", err)
	}
	if cfg.Stream.DepthLevels != 20 || cfg.Stream.DepthIntervalMs != 100 {
		t.Fatalf("unexpected depth settings: %+v", cfg.Stream)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MARKETVIEW_SYMBOL", " SOLUSDT ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	path := writeTempConfig(t, `notifications:
  telegram:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stream.Symbol != "solusdt" {
		t.Errorf("symbol override not applied: %q", cfg.Stream.Symbol)
	}
	if cfg.Notifications.Telegram.BotToken != "token" || cfg.Notifications.Telegram.ChatID != "42" {
		t.Errorf("telegram overrides not applied: %+v", cfg.Notifications.Telegram)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"base_url":     func(c *Config) { c.Stream.BaseURL = "https://example.com" },
		"symbol":       func(c *Config) { c.Stream.Symbol = "" },
		"depth_levels": func(c *Config) { c.Stream.DepthLevels = 15 },
		"interval":     func(c *Config) { c.Stream.DepthIntervalMs = 250 },
		"local_ip":     func(c *Config) { c.Stream.LocalIP = "nope" },
		"base_delay":   func(c *Config) { c.Stream.Reconnect.BaseDelay = 0 },
		"max_delay":    func(c *Config) { c.Stream.Reconnect.MaxDelay = time.Millisecond },
		"multiplier":   func(c *Config) { c.Stream.Reconnect.Multiplier = 0.5 },
		"capacity":     func(c *Config) { c.Tape.Capacity = 0 },
		"ttl":          func(c *Config) { c.Notifications.DefaultTTL = 0 },
		"telegram":     func(c *Config) { c.Notifications.Telegram.Enabled = true },
		"push":         func(c *Config) { c.Dashboard.PushInterval = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := validateConfig(&cfg); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	cfg := Default()
	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", " Prod ")
	if got := AppEnvironment(); got != EnvironmentProduction {
		t.Fatalf("AppEnvironment() = %q", got)
	}
	if !IsProductionLike(AppEnvironment()) {
		t.Fatal("production should be production-like")
	}
	t.Setenv("APP_ENV", "")
	if got := AppEnvironment(); got != EnvironmentDevelopment {
		t.Fatalf("AppEnvironment() = %q", got)
	}
}

func TestResolveEnvSpecificPath(t *testing.T) {
	dir := t.TempDir()
	prodPath := filepath.Join(dir, "config.production.yml")
	if err := os.WriteFile(prodPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	envPaths := map[string]string{EnvironmentProduction: prodPath}

	t.Setenv("APP_ENV", "production")
	if got := resolveEnvSpecificPath("", "default.yml", envPaths); got != prodPath {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := resolveEnvSpecificPath("custom.yml", "default.yml", envPaths); got != "custom.yml" {
		t.Fatalf("explicit path should win, got %q", got)
	}

	t.Setenv("APP_ENV", "staging")
	if got := resolveEnvSpecificPath("", "default.yml", envPaths); got != "default.yml" {
		t.Fatalf("expected default path, got %q", got)
	}
}
