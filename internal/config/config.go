// Package config handles configuration loading for the webjuridico backend.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	Official OfficialConfig `mapstructure:"official" yaml:"official"`
	Data     DataConfig     `mapstructure:"data"     yaml:"data"`
	Visits   VisitsConfig   `mapstructure:"visits"   yaml:"visits"`
	Contact  ContactConfig  `mapstructure:"contact"  yaml:"contact"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	ServeSite   bool     `mapstructure:"serve_site"   yaml:"serve_site"`
}

// OfficialConfig holds the upstream calculator settings.
type OfficialConfig struct {
	Host       string `mapstructure:"host"        yaml:"host"`
	CalcPath   string `mapstructure:"calc_path"   yaml:"calc_path"`
	CatalogTTL int    `mapstructure:"catalog_ttl" yaml:"catalog_ttl"` // seconds
}

// DataConfig holds file-state locations.
type DataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// VisitsConfig holds visit-counter settings.
type VisitsConfig struct {
	DedupeWindow int `mapstructure:"dedupe_window" yaml:"dedupe_window"` // seconds
}

// ContactConfig holds contact form and SMTP delivery settings.
type ContactConfig struct {
	SMTPHost        string `mapstructure:"smtp_host"         yaml:"smtp_host"`
	SMTPPort        int    `mapstructure:"smtp_port"         yaml:"smtp_port"`
	SMTPUser        string `mapstructure:"smtp_user"         yaml:"smtp_user"`
	SMTPPass        string `mapstructure:"smtp_pass"         yaml:"smtp_pass"`
	ToEmail         string `mapstructure:"to_email"          yaml:"to_email"`
	FromEmail       string `mapstructure:"from_email"        yaml:"from_email"`
	SubjectPrefix   string `mapstructure:"subject_prefix"    yaml:"subject_prefix"`
	RateLimitWindow int    `mapstructure:"rate_limit_window" yaml:"rate_limit_window"` // seconds
	RateLimitMax    int    `mapstructure:"rate_limit_max"    yaml:"rate_limit_max"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// CatalogTTLDuration returns the catalog freshness window as a duration.
func (c OfficialConfig) CatalogTTLDuration() time.Duration {
	return time.Duration(c.CatalogTTL) * time.Second
}

// DedupeWindowDuration returns the visit dedupe window as a duration.
func (c VisitsConfig) DedupeWindowDuration() time.Duration {
	return time.Duration(c.DedupeWindow) * time.Second
}

// RateLimitWindowDuration returns the contact rate-limit window as a duration.
func (c ContactConfig) RateLimitWindowDuration() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.webjuridico/config.yaml (home directory)
//  3. /etc/webjuridico/config.yaml (system)
//
// Environment variables override config file values.
// Format: WEBJURIDICO_<SECTION>_<KEY>, e.g., WEBJURIDICO_CONTACT_SMTP_HOST
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".webjuridico"))
	v.AddConfigPath("/etc/webjuridico")

	v.SetEnvPrefix("WEBJURIDICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("WEBJURIDICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5500)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.serve_site", true)

	// Upstream calculator defaults
	v.SetDefault("official.host", "www.justiciachaco.gov.ar")
	v.SetDefault("official.calc_path", "/sistemas/calcula_tasas/calculadora_v2/")
	v.SetDefault("official.catalog_ttl", 6*60*60) // 6 hours

	// Data defaults
	v.SetDefault("data.dir", "./data")

	// Visits defaults
	v.SetDefault("visits.dedupe_window", 12*60*60) // 12 hours

	// Contact defaults
	v.SetDefault("contact.smtp_port", 587)
	v.SetDefault("contact.subject_prefix", "[Web Juridico]")
	v.SetDefault("contact.rate_limit_window", 10*60) // 10 minutes
	v.SetDefault("contact.rate_limit_max", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if h := os.Getenv("WEBJURIDICO_CONTACT_SMTP_HOST"); h != "" {
		cfg.Contact.SMTPHost = h
	}
	if u := os.Getenv("WEBJURIDICO_CONTACT_SMTP_USER"); u != "" {
		cfg.Contact.SMTPUser = u
	}
	if p := os.Getenv("WEBJURIDICO_CONTACT_SMTP_PASS"); p != "" {
		cfg.Contact.SMTPPass = p
	}
	if to := os.Getenv("WEBJURIDICO_CONTACT_TO_EMAIL"); to != "" {
		cfg.Contact.ToEmail = to
	}
	if from := os.Getenv("WEBJURIDICO_CONTACT_FROM_EMAIL"); from != "" {
		cfg.Contact.FromEmail = from
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
