package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Default HTTP server settings.
const (
	DefaultServerAddress = ":8080"
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 15 * time.Second
	DefaultIdleTimeout   = 60 * time.Second
)

// ServerConfig holds the coordinator HTTP server settings.
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080").
	Address string `yaml:"address" env:"CRAWLPLANE_SERVER_ADDRESS"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout is the maximum duration before timing out response writes.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// IdleTimeout is the maximum time to wait for the next request.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// APIKey protects everything under /api. Empty disables authentication.
	APIKey string `json:"-" yaml:"api_key" env:"CRAWLPLANE_API_KEY"`
}

// Validate checks the server section.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("server.address must not be empty")
	}

	return nil
}

func loadServerConfig(v *viper.Viper) ServerConfig {
	return ServerConfig{
		Address:      v.GetString("server.address"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		IdleTimeout:  v.GetDuration("server.idle_timeout"),
		APIKey:       v.GetString("server.api_key"),
	}
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server", map[string]any{
		"address":       DefaultServerAddress,
		"read_timeout":  DefaultReadTimeout.String(),
		"write_timeout": DefaultWriteTimeout.String(),
		"idle_timeout":  DefaultIdleTimeout.String(),
	})
}
