package config

import (
	"github.com/garyjia/internflow/internal/container"
)

// ToContainerConfig converts the file-based configuration loaded by viper
// into the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Notify: container.NotifyConfig{
			Driver: c.Notify.Driver,
			Lark: container.LarkConfig{
				AppID:         c.Notify.Lark.AppID,
				AppSecret:     c.Notify.Lark.AppSecret,
				ReceiveIDType: c.Notify.Lark.ReceiveIDType,
				ReceiveID:     c.Notify.Lark.ReceiveID,
				RoleReceivers: c.Notify.Lark.RoleReceivers,
			},
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Mode:         c.Server.Mode,
		},
		Worker: container.WorkerConfig{
			SweepEnabled:   c.Worker.SweepEnabled,
			SweepInterval:  c.Worker.SweepInterval,
			SweepBatchSize: c.Worker.SweepBatchSize,
		},
	}
}
