package config

import (
	"fmt"
	"regexp"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Bilibili  BilibiliConfig  `yaml:"bilibili"`
	Security  SecurityConfig  `yaml:"security"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// APIConfig contains operator API configuration.
type APIConfig struct {
	Enabled  bool       `yaml:"enabled"`
	BasePath string     `yaml:"base_path"`
	Auth     AuthConfig `yaml:"auth"`
}

// AuthConfig contains API authentication configuration.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// DatabaseConfig contains SQLite configuration.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// SchedulerConfig contains polling scheduler configuration.
type SchedulerConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	MaxBatch       int           `yaml:"max_batch"`
	Workers        int           `yaml:"workers"`
	FailureBackoff time.Duration `yaml:"failure_backoff"`
}

// BilibiliConfig contains upstream platform client configuration.
type BilibiliConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// SecurityConfig contains secret sealing configuration.
type SecurityConfig struct {
	// EncryptKey is the AES-256 key as 64 hex characters. Usually
	// injected via ${BILITRACK_ENCRYPT_KEY}.
	EncryptKey string `yaml:"encrypt_key"`
}

// TelegramConfig contains Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

var hexKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("security: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.BasePath == "" {
		a.BasePath = "/api/v1"
	}
	if a.Auth.Enabled && len(a.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth: api_keys is required when auth is enabled")
	}
	if a.Auth.HeaderName == "" {
		a.Auth.HeaderName = "X-API-Key"
	}
	return nil
}

// Validate validates database configuration.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		d.Path = "bilitrack.db"
	}
	if d.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	if d.RetentionDays == 0 {
		d.RetentionDays = 90
	}
	return nil
}

// Validate validates scheduler configuration.
func (s *SchedulerConfig) Validate() error {
	if s.TickInterval < 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if s.TickInterval == 0 {
		s.TickInterval = 5 * time.Second
	}
	if s.MaxBatch <= 0 {
		s.MaxBatch = 100
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.FailureBackoff <= 0 {
		s.FailureBackoff = 5 * time.Minute
	}
	return nil
}

// Validate validates security configuration.
func (s *SecurityConfig) Validate() error {
	if s.EncryptKey == "" {
		return fmt.Errorf("encrypt_key is required")
	}
	if !hexKeyPattern.MatchString(s.EncryptKey) {
		return fmt.Errorf("encrypt_key must be 64 hexadecimal characters")
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return fmt.Errorf("bot_token is required when telegram is enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when telegram is enabled")
	}
	return nil
}
