// Package container wires the workflow engine together and owns its lifecycle.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Auth     AuthConfig
	Notify   NotifyConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SkipMigrations leaves the schema untouched on start
	SkipMigrations bool
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// NotifyConfig selects the notifier behind the notification service.
type NotifyConfig struct {
	// Driver is "log" or "lark"
	Driver string
	Lark   LarkConfig
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ReceiveID     string
	RoleReceivers map[string]string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Mode         string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	SweepEnabled   bool
	SweepInterval  time.Duration
	SweepBatchSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/internflow.db",
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer:   "internflow",
			TokenTTL: 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Driver: "log",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Mode:         "release",
		},
		Worker: WorkerConfig{
			SweepEnabled:   true,
			SweepInterval:  10 * time.Minute,
			SweepBatchSize: 100,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Notify.Driver {
	case "", "log":
	case "lark":
		if c.Notify.Lark.AppID == "" || c.Notify.Lark.AppSecret == "" {
			return fmt.Errorf("lark credentials are required for the lark driver")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}

	return nil
}
