package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Default MinIO settings.
const (
	DefaultMinioEndpoint = "localhost:9000"
	DefaultMinioBucket   = "crawlplane-content"
)

// MinioConfig holds the object store settings for raw page content. When
// disabled, content bodies are kept in an in-memory store, which is only
// suitable for tests and local development.
type MinioConfig struct {
	Enabled   bool   `yaml:"enabled" env:"MINIO_ENABLED"`
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `json:"-" yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `json:"-" yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
}

// Validate checks the MinIO section. Credentials are only required when the
// store is enabled.
func (c *MinioConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return errors.New("minio.endpoint must not be empty")
	}

	if c.AccessKey == "" {
		return errors.New("minio.access_key must not be empty")
	}

	if c.SecretKey == "" {
		return errors.New("minio.secret_key must not be empty")
	}

	if c.Bucket == "" {
		return errors.New("minio.bucket must not be empty")
	}

	return nil
}

func loadMinioConfig(v *viper.Viper) MinioConfig {
	return MinioConfig{
		Enabled:   v.GetBool("minio.enabled"),
		Endpoint:  v.GetString("minio.endpoint"),
		AccessKey: v.GetString("minio.access_key"),
		SecretKey: v.GetString("minio.secret_key"),
		Bucket:    v.GetString("minio.bucket"),
		UseSSL:    v.GetBool("minio.use_ssl"),
	}
}

func setMinioDefaults(v *viper.Viper) {
	v.SetDefault("minio", map[string]any{
		"enabled":  false,
		"endpoint": DefaultMinioEndpoint,
		"bucket":   DefaultMinioBucket,
		"use_ssl":  false,
	})
}
