package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	VNDB      VNDBConfig      `mapstructure:"vndb" yaml:"vndb"`
	Translate TranslateConfig `mapstructure:"translate" yaml:"translate"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
}

// ServerConfig holds relay server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// SearchesPerMinute limits searches started per client IP. Zero disables the limit.
	SearchesPerMinute int `mapstructure:"searches_per_minute" yaml:"searches_per_minute"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig describes the upstream search API.
type APIConfig struct {
	BaseURL           string `mapstructure:"base_url" yaml:"base_url"`
	Mode              string `mapstructure:"mode" yaml:"mode"`
	ConnectTimeout    int    `mapstructure:"connect_timeout" yaml:"connect_timeout"` // seconds
	UserAgent         string `mapstructure:"user_agent" yaml:"user_agent"`
	PasswordField     string `mapstructure:"password_field" yaml:"password_field"`
	Password          string `mapstructure:"password" yaml:"password"`
	FlushTrailingLine bool   `mapstructure:"flush_trailing_line" yaml:"flush_trailing_line"`
}

// VNDBConfig holds VNDB Kana API settings.
type VNDBConfig struct {
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	Timeout         int    `mapstructure:"timeout" yaml:"timeout"` // seconds
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// TranslateConfig holds the OpenAI-compatible translation endpoint.
type TranslateConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	Model          string `mapstructure:"model" yaml:"model"`
	Timeout        int    `mapstructure:"timeout" yaml:"timeout"` // seconds
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language"`
}

// HistoryConfig controls search history retention.
type HistoryConfig struct {
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
	PruneCron     string `mapstructure:"prune_cron" yaml:"prune_cron"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8787,
			SearchesPerMinute: 10,
		},
		Database: DatabaseConfig{
			Path: "./data/searchgal.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		API: APIConfig{
			BaseURL:        "https://searchgal.homes",
			Mode:           "game",
			ConnectTimeout: 30,
			UserAgent:      "searchgal-go",
		},
		VNDB: VNDBConfig{
			BaseURL:         "https://api.vndb.org/kana",
			Timeout:         15,
			CacheTTLMinutes: 60,
		},
		Translate: TranslateConfig{
			Timeout:        60,
			TargetLanguage: "zh-CN",
		},
		History: HistoryConfig{
			RetentionDays: 30,
			PruneCron:     "0 3 * * *",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; variables already set win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.searchgal")
	}

	v.SetEnvPrefix("SEARCHGAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults mirrors Default so every key is known to viper, which
// AutomaticEnv needs to pick up env-only overrides.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.searches_per_minute", d.Server.SearchesPerMinute)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.mode", d.API.Mode)
	v.SetDefault("api.connect_timeout", d.API.ConnectTimeout)
	v.SetDefault("api.user_agent", d.API.UserAgent)
	v.SetDefault("api.password_field", d.API.PasswordField)
	v.SetDefault("api.password", d.API.Password)
	v.SetDefault("api.flush_trailing_line", d.API.FlushTrailingLine)

	v.SetDefault("vndb.base_url", d.VNDB.BaseURL)
	v.SetDefault("vndb.timeout", d.VNDB.Timeout)
	v.SetDefault("vndb.cache_ttl_minutes", d.VNDB.CacheTTLMinutes)

	v.SetDefault("translate.base_url", d.Translate.BaseURL)
	v.SetDefault("translate.api_key", d.Translate.APIKey)
	v.SetDefault("translate.model", d.Translate.Model)
	v.SetDefault("translate.timeout", d.Translate.Timeout)
	v.SetDefault("translate.target_language", d.Translate.TargetLanguage)

	v.SetDefault("history.retention_days", d.History.RetentionDays)
	v.SetDefault("history.prune_cron", d.History.PruneCron)
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Mode != "game" && c.API.Mode != "patch" {
		return fmt.Errorf("invalid api.mode %q, expected game or patch", c.API.Mode)
	}
	if c.Server.SearchesPerMinute < 0 {
		return fmt.Errorf("invalid server.searches_per_minute %d", c.Server.SearchesPerMinute)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("invalid history.retention_days %d", c.History.RetentionDays)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConnectTimeoutDuration returns the connect-phase timeout.
func (c *APIConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// Fields returns the extra form fields sent with every search.
func (c *APIConfig) Fields() map[string]string {
	if c.PasswordField == "" || c.Password == "" {
		return nil
	}
	return map[string]string{c.PasswordField: c.Password}
}

// TimeoutDuration returns the VNDB request timeout.
func (c *VNDBConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CacheTTL returns how long VNDB lookups are cached.
func (c *VNDBConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// TimeoutDuration returns the translation request timeout.
func (c *TranslateConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Retention returns how long history entries are kept. Zero keeps them forever.
func (c *HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
