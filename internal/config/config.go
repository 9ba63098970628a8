// Package config loads process configuration for the coordinator server and
// the fetch worker from Viper-backed config files and environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config aggregates every configuration section of a crawlplane process.
type Config struct {
	App         AppConfig
	Logger      LoggingConfig
	Server      ServerConfig
	Storage     StorageConfig
	Minio       MinioConfig
	Maintenance MaintenanceConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	// Environment is "production" or "development".
	Environment string `yaml:"environment"`
	// Debug forces debug-level logging regardless of the logger section.
	Debug bool `yaml:"debug"`
}

// Load reads all sections from Viper. SetDefaults must have been applied to
// the same Viper instance first; the root command does this before any
// subcommand runs.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Environment: v.GetString("app.environment"),
			Debug:       v.GetBool("app.debug"),
		},
		Logger:      loadLoggingConfig(v),
		Server:      loadServerConfig(v),
		Storage:     loadStorageConfig(v),
		Minio:       loadMinioConfig(v),
		Maintenance: loadMaintenanceConfig(v),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if err := c.Minio.Validate(); err != nil {
		return err
	}

	return c.Maintenance.Validate()
}

// SetDefaults registers default values for every section on a Viper
// instance. Config files and environment variables override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"environment": "production",
		"debug":       false,
	})

	setLoggingDefaults(v)
	setServerDefaults(v)
	setStorageDefaults(v)
	setMinioDefaults(v)
	setMaintenanceDefaults(v)
}
