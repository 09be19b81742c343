// Package config loads client configuration from defaults, an optional
// YAML file and PARKPOS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the client configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Tab       TabConfig       `mapstructure:"tab"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	path string
}

// APIConfig locates the backend.
type APIConfig struct {
	URL         string `mapstructure:"url"`
	ParamsScope string `mapstructure:"params_scope"`
	ServiceCode string `mapstructure:"service_code"`
}

// StorageConfig controls the persistent session file.
type StorageConfig struct {
	Dir           string `mapstructure:"dir"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// TabConfig controls session-scoped storage. With RedisURL empty, the
// tab cache lives in process memory and ends with the process.
type TabConfig struct {
	ID       string        `mapstructure:"id"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NATSConfig enables the cross-terminal session broadcast. Terminals
// sharing a SigningKey accept only each other's events.
type NATSConfig struct {
	URL        string `mapstructure:"url"`
	SigningKey string `mapstructure:"signing_key"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"otlp_endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir returns the configuration directory: $PARKPOS_CONFIG_DIR or
// ~/.parkpos.
func Dir() (string, error) {
	if dir := os.Getenv("PARKPOS_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".parkpos"), nil
}

// Load reads configuration. cfgFile overrides <Dir>/config.yaml. A missing
// file is not an error; a malformed one is.
func Load(cfgFile string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dir)

	if cfgFile == "" {
		cfgFile = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PARKPOS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Short aliases for the settings operators change most.
	_ = v.BindEnv("api.url", "PARKPOS_API_URL", "PARKPOS_URL")
	_ = v.BindEnv("api.service_code", "PARKPOS_API_SERVICE_CODE", "PARKPOS_SERVICE_CODE")
	_ = v.BindEnv("tab.id", "PARKPOS_TAB_ID")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{path: cfgFile}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in defaults, ignoring files and environment.
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = ".parkpos"
	}
	v := viper.New()
	setDefaults(v, dir)

	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("api.url", "http://localhost:8080")
	v.SetDefault("api.params_scope", "operations")
	v.SetDefault("api.service_code", "")

	v.SetDefault("storage.dir", dir)
	v.SetDefault("storage.encryption_key", "")

	v.SetDefault("tab.id", "")
	v.SetDefault("tab.redis_url", "")
	v.SetDefault("tab.ttl", 12*time.Hour)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.signing_key", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "parkpos")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

// Path returns the config file location that was consulted.
func (c *Config) Path() string {
	return c.path
}

// StoragePath is the persistent session file.
func (c *Config) StoragePath() string {
	return filepath.Join(c.Storage.Dir, "storage.yaml")
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return errors.New("api.url is required")
	}
	if !validTabID(c.Tab.ID) {
		return fmt.Errorf("tab.id may only contain letters, digits, '.', '_' and '-', got %q", c.Tab.ID)
	}
	if c.Tab.TTL < 0 {
		return fmt.Errorf("tab.ttl must not be negative, got %s", c.Tab.TTL)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// validTabID reports whether id is safe inside a Redis key prefix. Empty
// means derive one at startup.
func validTabID(id string) bool {
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
