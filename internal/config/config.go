// Package config loads the application configuration for the inkwell
// binaries from file, environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"inkwell/internal/logging"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Debug          bool          `mapstructure:"debug"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig holds the data directory layout. FilesDir and DatabasePath
// derive from DataDir when left empty.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	FilesDir     string `mapstructure:"files_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// UploadConfig holds ingestion limits.
type UploadConfig struct {
	MaxBytes     int64         `mapstructure:"max_bytes"`
	AcceptTypes  string        `mapstructure:"accept_types"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// MetricsConfig holds the telemetry settings.
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// INKWELL_, so server.port becomes INKWELL_SERVER_PORT. When path is empty
// the loader searches ., $HOME/.inkwell and /etc/inkwell for inkwell.yaml
// and tolerates its absence; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("storage.files_dir", "")
	v.SetDefault("storage.database_path", "")
	v.SetDefault("upload.max_bytes", int64(16<<20))
	v.SetDefault("upload.accept_types", "image/*")
	v.SetDefault("upload.fetch_timeout", 30*time.Second)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.prometheus_port", 0)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("inkwell")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".inkwell"))
		v.AddConfigPath("/etc/inkwell")
	}

	v.SetEnvPrefix("INKWELL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the built-in configuration without touching disk or env.
func Default() Config {
	c := Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			EnableCORS:   true,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Upload: UploadConfig{
			MaxBytes:     16 << 20,
			AcceptTypes:  "image/*",
			FetchTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
	c.normalize()
	return c
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".inkwell"
	}
	return filepath.Join(home, ".inkwell")
}

// normalize fills the derived storage paths.
func (c *Config) normalize() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaultDataDir()
	}
	if c.Storage.FilesDir == "" {
		c.Storage.FilesDir = filepath.Join(c.Storage.DataDir, "files")
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(c.Storage.DataDir, "inkwell.db")
	}
}

// Validate rejects settings the binaries cannot start with.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("config: upload max_bytes must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.PrometheusPort < 0 {
		return fmt.Errorf("config: prometheus port %d out of range", c.Metrics.PrometheusPort)
	}
	return nil
}

// Addr returns the host:port the server binds.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LogLevel returns the parsed log level. Unknown values fall back to info.
func (c Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}
