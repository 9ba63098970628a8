package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/config"
	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/store"
)

// Stores bundles the persistence backends the coordinator server needs.
type Stores struct {
	State   store.StateStore
	Pages   store.PageStore
	Configs store.ConfigStore
}

// BuildStores creates the persistence backends selected by storage.driver.
// The returned close function releases the underlying connections and is
// safe to call on every path.
func BuildStores(ctx context.Context, cfg *config.Config, log logger.Interface) (*Stores, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Info("Using in-memory storage; state is lost on restart")

		return &Stores{
			State:   store.NewMemoryStateStore(),
			Pages:   store.NewMemoryPageStore(),
			Configs: store.NewMemoryConfigStore(),
		}, noop, nil

	case config.StorageDriverPostgres:
		db, err := store.NewPostgresConnection(store.PostgresConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     strconv.Itoa(cfg.Storage.Postgres.Port),
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			DBName:   cfg.Storage.Postgres.DBName,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connect to postgres: %w", err)
		}

		if schemaErr := store.EnsureSchema(ctx, db); schemaErr != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ensure schema: %w", schemaErr)
		}

		log.Info("Using Postgres storage",
			"host", cfg.Storage.Postgres.Host,
			"dbname", cfg.Storage.Postgres.DBName,
		)

		return &Stores{
			State:   store.NewSnapshotRepository(db),
			Pages:   store.NewPageRepository(db),
			Configs: store.NewConfigRepository(db),
		}, func() { db.Close() }, nil

	case config.StorageDriverRedis:
		client, err := store.NewRedisClient(store.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connect to redis: %w", err)
		}

		log.Info("Using Redis snapshot storage; pages and configs stay in memory",
			"addr", cfg.Storage.Redis.Addr,
		)

		return &Stores{
			State:   store.NewRedisStateStore(client, cfg.Storage.Redis.Prefix),
			Pages:   store.NewMemoryPageStore(),
			Configs: store.NewMemoryConfigStore(),
		}, func() { _ = client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// BuildBlobStore creates the content store: MinIO when enabled, in-memory
// otherwise. EnsureBucket runs before the store is handed out so the first
// upload cannot race bucket creation.
func BuildBlobStore(ctx context.Context, cfg *config.Config, log logger.Interface) (blob.Store, error) {
	if !cfg.Minio.Enabled {
		log.Info("MinIO disabled; page content is kept in memory")
		return blob.NewMemoryStore(), nil
	}

	minioStore, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio store: %w", err)
	}

	if bucketErr := minioStore.EnsureBucket(ctx); bucketErr != nil {
		return nil, fmt.Errorf("ensure bucket: %w", bucketErr)
	}

	log.Info("Using MinIO content storage",
		"endpoint", cfg.Minio.Endpoint,
		"bucket", cfg.Minio.Bucket,
	)

	return minioStore, nil
}
