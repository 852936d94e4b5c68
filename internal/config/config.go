package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. INTERNFLOW_AUTH_JWT_SECRET
const EnvPrefix = "INTERNFLOW"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// NotifyConfig selects the notification channel
type NotifyConfig struct {
	Driver string     `mapstructure:"driver"`
	Lark   LarkConfig `mapstructure:"lark"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID         string            `mapstructure:"app_id"`
	AppSecret     string            `mapstructure:"app_secret"`
	ReceiveIDType string            `mapstructure:"receive_id_type"`
	ReceiveID     string            `mapstructure:"receive_id"`
	RoleReceivers map[string]string `mapstructure:"role_receivers"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	SweepEnabled   bool          `mapstructure:"sweep_enabled"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Notification drivers
const (
	DriverLog  = "log"
	DriverLark = "lark"
)

// Load reads .env, then configPath (optional when it does not exist), then
// INTERNFLOW_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.path", "data/internflow.db")
	v.SetDefault("database.max_open_conns", 8)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("auth.issuer", "internflow")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("notify.driver", DriverLog)
	v.SetDefault("notify.lark.receive_id_type", "chat_id")

	v.SetDefault("worker.sweep_enabled", true)
	v.SetDefault("worker.sweep_interval", 10*time.Minute)
	v.SetDefault("worker.sweep_batch_size", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds keys that have no default so AutomaticEnv sees them on Unmarshal
func bindEnvVars(v *viper.Viper) {
	for _, key := range []string{
		"auth.jwt_secret",
		"notify.lark.app_id",
		"notify.lark.app_secret",
		"notify.lark.receive_id",
	} {
		_ = v.BindEnv(key)
	}
	// Lark credentials also honour the unprefixed names used by the Lark tooling
	_ = v.BindEnv("notify.lark.app_id", EnvPrefix+"_NOTIFY_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("notify.lark.app_secret", EnvPrefix+"_NOTIFY_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Notify.Driver {
	case DriverLog:
	case DriverLark:
		if c.Notify.Lark.AppID == "" {
			return fmt.Errorf("notify.lark.app_id is required for the lark driver")
		}
		if c.Notify.Lark.AppSecret == "" {
			return fmt.Errorf("notify.lark.app_secret is required for the lark driver")
		}
		if c.Notify.Lark.ReceiveID == "" {
			return fmt.Errorf("notify.lark.receive_id is required for the lark driver")
		}
	default:
		return fmt.Errorf("notify.driver must be %q or %q, got %q", DriverLog, DriverLark, c.Notify.Driver)
	}

	if c.Worker.SweepEnabled && c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker.sweep_interval must be positive")
	}

	return nil
}
