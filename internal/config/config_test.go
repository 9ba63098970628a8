package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlplane/internal/config"
)

func newViperWithDefaults() *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)

	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(newViperWithDefaults())
	require.NoError(t, err)

	require.Equal(t, "production", cfg.App.Environment)
	require.False(t, cfg.App.Debug)

	require.Equal(t, "info", cfg.Logger.Level)
	require.Equal(t, "json", cfg.Logger.Encoding)
	require.False(t, cfg.Logger.Development)

	require.Equal(t, config.DefaultServerAddress, cfg.Server.Address)
	require.Equal(t, config.DefaultReadTimeout, cfg.Server.ReadTimeout)
	require.Equal(t, config.DefaultWriteTimeout, cfg.Server.WriteTimeout)
	require.Equal(t, config.DefaultIdleTimeout, cfg.Server.IdleTimeout)
	require.Empty(t, cfg.Server.APIKey)

	require.Equal(t, config.StorageDriverMemory, cfg.Storage.Driver)
	require.Equal(t, config.DefaultPostgresHost, cfg.Storage.Postgres.Host)
	require.Equal(t, config.DefaultPostgresPort, cfg.Storage.Postgres.Port)
	require.Equal(t, config.DefaultRedisAddr, cfg.Storage.Redis.Addr)
	require.Equal(t, config.DefaultRedisPrefix, cfg.Storage.Redis.Prefix)

	require.False(t, cfg.Minio.Enabled)
	require.Equal(t, config.DefaultMinioEndpoint, cfg.Minio.Endpoint)
	require.Equal(t, config.DefaultMinioBucket, cfg.Minio.Bucket)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, config.DefaultMaintenanceSchedule, cfg.Maintenance.Schedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	v := newViperWithDefaults()
	v.Set("app.environment", "development")
	v.Set("app.debug", true)
	v.Set("logger.level", "debug")
	v.Set("logger.encoding", "console")
	v.Set("server.address", ":9090")
	v.Set("server.read_timeout", "5s")
	v.Set("server.api_key", "secret")
	v.Set("storage.driver", "redis")
	v.Set("storage.redis.addr", "redis.internal:6379")
	v.Set("storage.redis.db", 3)
	v.Set("maintenance.schedule", "@every 30s")

	cfg, err := config.Load(v)
	require.NoError(t, err)

	require.Equal(t, "development", cfg.App.Environment)
	require.True(t, cfg.App.Debug)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "console", cfg.Logger.Encoding)
	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "secret", cfg.Server.APIKey)
	require.Equal(t, config.StorageDriverRedis, cfg.Storage.Driver)
	require.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
	require.Equal(t, 3, cfg.Storage.Redis.DB)
	require.Equal(t, "@every 30s", cfg.Maintenance.Schedule)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Parallel()

	v := newViperWithDefaults()
	v.Set("storage.driver", "cassandra")

	_, err := config.Load(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage.driver")
}

func TestServerConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  config.ServerConfig
		wantErr bool
	}{
		{
			name:    "valid",
			config:  config.ServerConfig{Address: ":8080"},
			wantErr: false,
		},
		{
			name:    "missing address",
			config:  config.ServerConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	t.Parallel()

	validPostgres := config.PostgresConfig{
		Host:   "localhost",
		Port:   5432,
		User:   "postgres",
		DBName: "crawlplane",
	}

	tests := []struct {
		name    string
		config  config.StorageConfig
		wantErr bool
	}{
		{
			name:    "memory driver",
			config:  config.StorageConfig{Driver: config.StorageDriverMemory},
			wantErr: false,
		},
		{
			name:    "valid postgres",
			config:  config.StorageConfig{Driver: config.StorageDriverPostgres, Postgres: validPostgres},
			wantErr: false,
		},
		{
			name: "postgres missing host",
			config: config.StorageConfig{
				Driver:   config.StorageDriverPostgres,
				Postgres: config.PostgresConfig{Port: 5432, User: "postgres", DBName: "crawlplane"},
			},
			wantErr: true,
		},
		{
			name: "postgres port out of range",
			config: config.StorageConfig{
				Driver:   config.StorageDriverPostgres,
				Postgres: config.PostgresConfig{Host: "localhost", Port: 70000, User: "postgres", DBName: "crawlplane"},
			},
			wantErr: true,
		},
		{
			name: "valid redis",
			config: config.StorageConfig{
				Driver: config.StorageDriverRedis,
				Redis:  config.RedisConfig{Addr: "localhost:6379"},
			},
			wantErr: false,
		},
		{
			name: "redis missing addr",
			config: config.StorageConfig{
				Driver: config.StorageDriverRedis,
				Redis:  config.RedisConfig{DB: 1},
			},
			wantErr: true,
		},
		{
			name: "redis negative db",
			config: config.StorageConfig{
				Driver: config.StorageDriverRedis,
				Redis:  config.RedisConfig{Addr: "localhost:6379", DB: -1},
			},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  config.StorageConfig{Driver: "sqlite"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMinioConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  config.MinioConfig
		wantErr bool
	}{
		{
			name:    "disabled needs nothing",
			config:  config.MinioConfig{Enabled: false},
			wantErr: false,
		},
		{
			name: "enabled with credentials",
			config: config.MinioConfig{
				Enabled:   true,
				Endpoint:  "localhost:9000",
				AccessKey: "access",
				SecretKey: "secret",
				Bucket:    "content",
			},
			wantErr: false,
		},
		{
			name: "enabled missing endpoint",
			config: config.MinioConfig{
				Enabled:   true,
				AccessKey: "access",
				SecretKey: "secret",
				Bucket:    "content",
			},
			wantErr: true,
		},
		{
			name: "enabled missing access key",
			config: config.MinioConfig{
				Enabled:   true,
				Endpoint:  "localhost:9000",
				SecretKey: "secret",
				Bucket:    "content",
			},
			wantErr: true,
		},
		{
			name: "enabled missing bucket",
			config: config.MinioConfig{
				Enabled:   true,
				Endpoint:  "localhost:9000",
				AccessKey: "access",
				SecretKey: "secret",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMaintenanceConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  config.MaintenanceConfig
		wantErr bool
	}{
		{
			name:    "disabled needs no schedule",
			config:  config.MaintenanceConfig{Enabled: false},
			wantErr: false,
		},
		{
			name:    "descriptor schedule",
			config:  config.MaintenanceConfig{Enabled: true, Schedule: "@every 1m"},
			wantErr: false,
		},
		{
			name:    "cron expression schedule",
			config:  config.MaintenanceConfig{Enabled: true, Schedule: "*/5 * * * *"},
			wantErr: false,
		},
		{
			name:    "empty schedule",
			config:  config.MaintenanceConfig{Enabled: true, Schedule: ""},
			wantErr: true,
		},
		{
			name:    "gibberish schedule",
			config:  config.MaintenanceConfig{Enabled: true, Schedule: "whenever"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
