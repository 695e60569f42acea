package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Agent AgentConfig `yaml:"agent"`
	API   APIConfig   `yaml:"api"`
}

type AgentConfig struct {
	HTTPPort         int             `yaml:"http_port"`
	APIBaseURL       string          `yaml:"api_base_url"`
	Debug            *bool           `yaml:"debug"`
	SessionTimeoutMs int64           `yaml:"session_timeout_ms"`
	Redis            RedisConfig     `yaml:"redis"`
	Scheduler        SchedulerConfig `yaml:"scheduler"`
	Popup            PopupConfig     `yaml:"popup"`
}

type SchedulerConfig struct {
	TickIntervalMs int64 `yaml:"tick_interval_ms"`
	MinDwellMs     int64 `yaml:"min_dwell_ms"`
	MinEvents      int   `yaml:"min_events"`
	CooldownMs     int64 `yaml:"cooldown_ms"`
}

type PopupConfig struct {
	AutoDismissMs int64 `yaml:"auto_dismiss_ms"`
	TransitionMs  int64 `yaml:"transition_ms"`
	EnterDelayMs  int64 `yaml:"enter_delay_ms"`
}

type APIConfig struct {
	HTTPPort   int              `yaml:"http_port"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	SessionTTLMs int64          `yaml:"session_ttl_ms"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	BatchSize    int    `yaml:"batch_size"`
	FlushIntervalMs int64 `yaml:"flush_interval_ms"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Agent.HTTPPort == 0 {
		cfg.Agent.HTTPPort = 7070
	}
	if cfg.Agent.APIBaseURL == "" {
		cfg.Agent.APIBaseURL = "http://localhost:8000"
	}
	if cfg.Agent.SessionTimeoutMs == 0 {
		cfg.Agent.SessionTimeoutMs = 30 * 60 * 1000
	}
	if cfg.Agent.Scheduler.TickIntervalMs == 0 {
		cfg.Agent.Scheduler.TickIntervalMs = 30 * 1000
	}
	if cfg.Agent.Scheduler.MinDwellMs == 0 {
		cfg.Agent.Scheduler.MinDwellMs = 60 * 1000
	}
	if cfg.Agent.Scheduler.MinEvents == 0 {
		cfg.Agent.Scheduler.MinEvents = 3
	}
	if cfg.Agent.Scheduler.CooldownMs == 0 {
		cfg.Agent.Scheduler.CooldownMs = 3 * 60 * 1000
	}
	if cfg.Agent.Popup.AutoDismissMs == 0 {
		cfg.Agent.Popup.AutoDismissMs = 10 * 1000
	}
	if cfg.Agent.Popup.TransitionMs == 0 {
		cfg.Agent.Popup.TransitionMs = 300
	}
	if cfg.Agent.Popup.EnterDelayMs == 0 {
		cfg.Agent.Popup.EnterDelayMs = 50
	}
	if cfg.API.HTTPPort == 0 {
		cfg.API.HTTPPort = 8000
	}
	if cfg.API.SessionTTLMs == 0 {
		cfg.API.SessionTTLMs = 60 * 60 * 1000
	}
	if cfg.API.OpenAI.Model == "" {
		cfg.API.OpenAI.Model = "gpt-3.5-turbo"
	}
	if cfg.API.RateLimit.RequestsPerSecond == 0 {
		cfg.API.RateLimit.RequestsPerSecond = 100
	}
	if cfg.API.ClickHouse.MaxOpenConns == 0 {
		cfg.API.ClickHouse.MaxOpenConns = 10
	}
	if cfg.API.ClickHouse.MaxIdleConns == 0 {
		cfg.API.ClickHouse.MaxIdleConns = 5
	}
	if cfg.API.ClickHouse.BatchSize == 0 {
		cfg.API.ClickHouse.BatchSize = 1000
	}
	if cfg.API.ClickHouse.FlushIntervalMs == 0 {
		cfg.API.ClickHouse.FlushIntervalMs = 5000
	}

	return &cfg, nil
}

// DebugEnabled reports whether verbose diagnostics are on. Debug defaults to
// verbose when the field is absent from the config file.
func (c AgentConfig) DebugEnabled() bool {
	if c.Debug == nil {
		return true
	}
	return *c.Debug
}

func (c AgentConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}

func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c SchedulerConfig) MinDwell() time.Duration {
	return time.Duration(c.MinDwellMs) * time.Millisecond
}

func (c SchedulerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

func (c PopupConfig) AutoDismiss() time.Duration {
	return time.Duration(c.AutoDismissMs) * time.Millisecond
}

func (c PopupConfig) Transition() time.Duration {
	return time.Duration(c.TransitionMs) * time.Millisecond
}

func (c PopupConfig) EnterDelay() time.Duration {
	return time.Duration(c.EnterDelayMs) * time.Millisecond
}

func (c ClickHouseConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

func (c APIConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMs) * time.Millisecond
}
