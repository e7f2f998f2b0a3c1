// Package config loads service configuration from an optional YAML file and
// HLS_* environment variables on top of built-in defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "HLS"

type (
	UploadConfig struct {
		MaxArchiveSize  int64         `mapstructure:"max_archive_size" validate:"gt=0"`
		MaxCSSSize      int64         `mapstructure:"max_css_size" validate:"gt=0"`
		MaxEntries      int           `mapstructure:"max_entries" validate:"gt=0"`
		MaxUncompressed int64         `mapstructure:"max_uncompressed" validate:"gtefield=MaxCSSSize"`
		Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	}

	RateLimitConfig struct {
		WritesPerMinute int `mapstructure:"writes_per_minute" validate:"gte=0"`
	}

	UserConfig struct {
		Username     string `mapstructure:"username" validate:"required"`
		PasswordHash string `mapstructure:"password_hash" validate:"required"`
		Role         string `mapstructure:"role" validate:"required,oneof=admin editor author contributor"`
	}

	S3Config struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	}

	WebDAVConfig struct {
		URL      string `mapstructure:"url" validate:"omitempty,url"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
	}

	BackupConfig struct {
		// Schedule is a cron spec; empty disables automatic backups.
		Schedule string       `mapstructure:"schedule"`
		Target   string       `mapstructure:"target" validate:"omitempty,oneof=s3 webdav"`
		S3       S3Config     `mapstructure:"s3"`
		WebDAV   WebDAVConfig `mapstructure:"webdav"`
	}

	Config struct {
		Port      string          `mapstructure:"port" validate:"required,numeric"`
		DataDir   string          `mapstructure:"data_dir" validate:"required"`
		SiteURL   string          `mapstructure:"site_url" validate:"required,url"`
		JWTSecret string          `mapstructure:"jwt_secret" validate:"required,min=16"`
		LogLevel  string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
		Upload    UploadConfig    `mapstructure:"upload"`
		RateLimit RateLimitConfig `mapstructure:"rate_limit"`
		Users     []UserConfig    `mapstructure:"users" validate:"dive"`
		Backup    BackupConfig    `mapstructure:"backup"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("jwt_secret", "hlstype-secret-key-change-in-production")
	v.SetDefault("log_level", "info")

	v.SetDefault("upload.max_archive_size", 10*1024*1024)
	v.SetDefault("upload.max_css_size", 1024*1024)
	v.SetDefault("upload.max_entries", 100)
	v.SetDefault("upload.max_uncompressed", 64*1024*1024)
	v.SetDefault("upload.timeout", 300*time.Second)

	v.SetDefault("rate_limit.writes_per_minute", 50)

	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.target", "")
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.webdav.url", "")
	v.SetDefault("backup.webdav.user", "")
	v.SetDefault("backup.webdav.password", "")
}

// Load reads configuration from path (when not empty), then environment
// variables, then defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UploadsDir is the root served under /uploads.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// UploadsURL is the public URL of UploadsDir.
func (c *Config) UploadsURL() string {
	return c.SiteURL + "/uploads"
}

// DatabasePath returns the SQLite connection string for the options database.
func (c *Config) DatabasePath() string {
	dbPath := filepath.Join(c.DataDir, "hlstype.db")
	return fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)", dbPath)
}

// User returns the configured user with the given name.
func (c *Config) User(username string) (UserConfig, bool) {
	for _, u := range c.Users {
		if u.Username == username {
			return u, true
		}
	}
	return UserConfig{}, false
}
