package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Storage drivers for run snapshots and crawled pages.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

// Default Postgres connection settings.
const (
	DefaultPostgresHost    = "localhost"
	DefaultPostgresPort    = 5432
	DefaultPostgresUser    = "postgres"
	DefaultPostgresDBName  = "crawlplane"
	DefaultPostgresSSLMode = "disable"
)

// Default Redis connection settings.
const (
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "crawlplane"
)

// StorageConfig selects and configures the persistence backend. Snapshots go
// to the configured driver; crawled page metadata always goes to Postgres
// when the driver is postgres and stays in memory otherwise.
type StorageConfig struct {
	// Driver is one of memory, postgres, redis.
	Driver   string         `yaml:"driver" env:"CRAWLPLANE_STORAGE_DRIVER"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds connection settings for the Postgres backend.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `json:"-" yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `json:"-" yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	// Prefix namespaces every key this process writes.
	Prefix string `yaml:"prefix"`
}

// Validate checks the storage section.
func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
		return c.Postgres.Validate()
	case StorageDriverRedis:
		return c.Redis.Validate()
	default:
		return fmt.Errorf("storage.driver must be one of %s, %s, %s: got %q",
			StorageDriverMemory, StorageDriverPostgres, StorageDriverRedis, c.Driver)
	}
}

// Validate checks the Postgres connection settings.
func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return errors.New("storage.postgres.host must not be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("storage.postgres.port must be between 1 and 65535: got %d", c.Port)
	}

	if c.User == "" {
		return errors.New("storage.postgres.user must not be empty")
	}

	if c.DBName == "" {
		return errors.New("storage.postgres.dbname must not be empty")
	}

	return nil
}

// Validate checks the Redis connection settings.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("storage.redis.addr must not be empty")
	}

	if c.DB < 0 {
		return fmt.Errorf("storage.redis.db must not be negative: got %d", c.DB)
	}

	return nil
}

func loadStorageConfig(v *viper.Viper) StorageConfig {
	return StorageConfig{
		Driver: v.GetString("storage.driver"),
		Postgres: PostgresConfig{
			Host:     v.GetString("storage.postgres.host"),
			Port:     v.GetInt("storage.postgres.port"),
			User:     v.GetString("storage.postgres.user"),
			Password: v.GetString("storage.postgres.password"),
			DBName:   v.GetString("storage.postgres.dbname"),
			SSLMode:  v.GetString("storage.postgres.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("storage.redis.addr"),
			Password: v.GetString("storage.redis.password"),
			DB:       v.GetInt("storage.redis.db"),
			Prefix:   v.GetString("storage.redis.prefix"),
		},
	}
}

func setStorageDefaults(v *viper.Viper) {
	v.SetDefault("storage", map[string]any{
		"driver": StorageDriverMemory,
		"postgres": map[string]any{
			"host":    DefaultPostgresHost,
			"port":    DefaultPostgresPort,
			"user":    DefaultPostgresUser,
			"dbname":  DefaultPostgresDBName,
			"sslmode": DefaultPostgresSSLMode,
		},
		"redis": map[string]any{
			"addr":   DefaultRedisAddr,
			"db":     0,
			"prefix": DefaultRedisPrefix,
		},
	})
}
