package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MarketView    MarketViewConfig    `yaml:"marketview"`
	Stream        StreamConfig        `yaml:"stream"`
	Tape          TapeConfig          `yaml:"tape"`
	Seed          SeedConfig          `yaml:"seed"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type MarketViewConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type StreamConfig struct {
	BaseURL          string          `yaml:"base_url"`
	Symbol           string          `yaml:"symbol"`
	DepthLevels      int             `yaml:"depth_levels"`
	DepthIntervalMs  int             `yaml:"depth_interval_ms"`
	StartDelay       time.Duration   `yaml:"start_delay"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	LocalIP          string          `yaml:"local_ip"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type TapeConfig struct {
	Capacity int `yaml:"capacity"`
}

type SeedConfig struct {
	Enabled bool          `yaml:"enabled"`
	RestURL string        `yaml:"rest_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type NotificationsConfig struct {
	DefaultTTL time.Duration  `yaml:"default_ttl"`
	History    int            `yaml:"history"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BotToken      string        `yaml:"bot_token"`
	ChatID        string        `yaml:"chat_id"`
	MinSeverity   string        `yaml:"min_severity"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type DashboardConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Address          string        `yaml:"address"`
	PushInterval     time.Duration `yaml:"push_interval"`
	LogHistory       int           `yaml:"log_history"`
	ResourceInterval time.Duration `yaml:"resource_interval"`
	ResourceHistory  int           `yaml:"resource_history"`
}

type MetricsConfig struct {
	Enabled        bool             `yaml:"enabled"`
	ReportInterval time.Duration    `yaml:"report_interval"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		MarketView: MarketViewConfig{Name: "marketview", Version: "dev"},
		Stream: StreamConfig{
			BaseURL:          "wss://stream.binance.com:9443/ws",
			Symbol:           "btcusdt",
			DepthLevels:      20,
			DepthIntervalMs:  100,
			StartDelay:       100 * time.Millisecond,
			HandshakeTimeout: 15 * time.Second,
			Reconnect: ReconnectConfig{
				BaseDelay:   time.Second,
				MaxDelay:    30 * time.Second,
				Multiplier:  2,
				MaxAttempts: 10,
			},
		},
		Tape: TapeConfig{Capacity: 100},
		Seed: SeedConfig{
			RestURL: "https://api.binance.com",
			Timeout: 5 * time.Second,
		},
		Notifications: NotificationsConfig{
			DefaultTTL: 5 * time.Second,
			History:    50,
			Telegram: TelegramConfig{
				MinSeverity:   "error",
				RatePerSecond: 1,
				Burst:         3,
				QueueSize:     64,
				MaxRetries:    3,
				RetryDelay:    time.Second,
			},
		},
		Dashboard: DashboardConfig{
			Enabled:          true,
			Address:          "0.0.0.0:8080",
			PushInterval:     250 * time.Millisecond,
			LogHistory:       200,
			ResourceInterval: 5 * time.Second,
			ResourceHistory:  120,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ReportInterval: 30 * time.Second,
			CloudWatch:     CloudWatchConfig{Namespace: "MarketView"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

// LoadConfig reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path resolves by APP_ENV.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultPath is where LoadConfig looks when no path is given.
const DefaultPath = "config/config.yml"

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETVIEW_SYMBOL"); v != "" {
		cfg.Stream.Symbol = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = strings.TrimSpace(v)
	}
	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		cfg.Metrics.CloudWatch.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
	cfg.Stream.Symbol = NormalizeSymbol(cfg.Stream.Symbol)
}

func validateConfig(cfg *Config) error {
	if cfg.MarketView.Name == "" {
		return fmt.Errorf("marketview.name is required")
	}

	u, err := url.Parse(cfg.Stream.BaseURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("stream.base_url '%s' must be a ws:// or wss:// URL", cfg.Stream.BaseURL)
	}
	if cfg.Stream.Symbol == "" {
		return fmt.Errorf("stream.symbol is required")
	}
	switch cfg.Stream.DepthLevels {
	case 5, 10, 20:
	default:
		return fmt.Errorf("stream.depth_levels must be one of 5, 10, 20")
	}
	if cfg.Stream.DepthIntervalMs != 100 && cfg.Stream.DepthIntervalMs != 1000 {
		return fmt.Errorf("stream.depth_interval_ms must be 100 or 1000")
	}
	if cfg.Stream.StartDelay < 0 {
		return fmt.Errorf("stream.start_delay must not be negative")
	}
	if cfg.Stream.LocalIP != "" && net.ParseIP(cfg.Stream.LocalIP) == nil {
		return fmt.Errorf("stream.local_ip '%s' is not an IP address", cfg.Stream.LocalIP)
	}

	rc := cfg.Stream.Reconnect
	if rc.BaseDelay <= 0 {
		return fmt.Errorf("stream.reconnect.base_delay must be greater than 0")
	}
	if rc.MaxDelay < rc.BaseDelay {
		return fmt.Errorf("stream.reconnect.max_delay must be >= base_delay")
	}
	if rc.Multiplier < 1 {
		return fmt.Errorf("stream.reconnect.multiplier must be >= 1")
	}
	if rc.MaxAttempts < 0 {
		return fmt.Errorf("stream.reconnect.max_attempts must not be negative")
	}

	if cfg.Tape.Capacity <= 0 {
		return fmt.Errorf("tape.capacity must be greater than 0")
	}

	if cfg.Notifications.DefaultTTL <= 0 {
		return fmt.Errorf("notifications.default_ttl must be greater than 0")
	}
	if cfg.Notifications.History <= 0 {
		return fmt.Errorf("notifications.history must be greater than 0")
	}
	tg := cfg.Notifications.Telegram
	if tg.Enabled {
		if tg.BotToken == "" || tg.ChatID == "" {
			return fmt.Errorf("notifications.telegram.bot_token and chat_id are required when telegram is enabled")
		}
		switch strings.ToLower(tg.MinSeverity) {
		case "info", "success", "warning", "error":
		default:
			return fmt.Errorf("notifications.telegram.min_severity '%s' is invalid", tg.MinSeverity)
		}
		if tg.RatePerSecond <= 0 {
			return fmt.Errorf("notifications.telegram.rate_per_second must be greater than 0")
		}
	}

	if cfg.Dashboard.Enabled && cfg.Dashboard.PushInterval <= 0 {
		return fmt.Errorf("dashboard.push_interval must be greater than 0")
	}

	if cfg.Seed.Enabled {
		if _, err := url.ParseRequestURI(cfg.Seed.RestURL); err != nil {
			return fmt.Errorf("seed.rest_url '%s' is invalid", cfg.Seed.RestURL)
		}
	}

	return nil
}
