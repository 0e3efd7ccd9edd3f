package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr      string
	DatabasePath    string
	DataDir         string
	MaxUploadBytes  int64
	LogLevel        string
	LogFormat       string
	LogFile         string
	JanitorInterval time.Duration

	// WriteRateLimit is the per-client budget of uploads and
	// transformations per minute. Zero disables the limit.
	WriteRateLimit int
	// TrustedProxyCIDRs lists the peers whose X-Forwarded-For is honored.
	TrustedProxyCIDRs string
}

var defaults = map[string]any{
	"server_addr":         ":8080",
	"database_path":       "./data/sketchlab.db",
	"data_dir":            "./data",
	"max_upload_bytes":    int64(25 << 20),
	"log_level":           "info",
	"log_format":          "json",
	"log_file":            "",
	"janitor_interval":    6 * time.Hour,
	"write_rate_limit":    30,
	"trusted_proxy_cidrs": "",
}

// Load reads configuration from environment variables (SERVER_ADDR,
// DATABASE_PATH, ...), falling back to defaults.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		ServerAddr:        v.GetString("server_addr"),
		DatabasePath:      v.GetString("database_path"),
		DataDir:           v.GetString("data_dir"),
		MaxUploadBytes:    v.GetInt64("max_upload_bytes"),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
		LogFile:           v.GetString("log_file"),
		JanitorInterval:   v.GetDuration("janitor_interval"),
		WriteRateLimit:    v.GetInt("write_rate_limit"),
		TrustedProxyCIDRs: v.GetString("trusted_proxy_cidrs"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("config: SERVER_ADDR is empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: DATA_DIR is empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("config: JANITOR_INTERVAL must be positive, got %s", c.JanitorInterval)
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("config: WRITE_RATE_LIMIT must not be negative, got %d", c.WriteRateLimit)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
