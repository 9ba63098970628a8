package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

const (
	// defaultConnectionTimeout bounds the initial Redis ping.
	defaultConnectionTimeout = 2 * time.Second

	// defaultKeyPrefix namespaces all control-plane keys.
	defaultKeyPrefix = "crawlplane"
)

// RedisConfig holds configuration for the Redis state store.
type RedisConfig struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	Prefix   string
}

// NewRedisClient creates and pings a Redis client.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisStateStore persists run snapshots as five keys per run, written
// through MULTI/EXEC so the slots change together, and read back with a
// single MGET so a load never observes a half-written snapshot.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore creates a snapshot store on an existing Redis client.
func NewRedisStateStore(client *redis.Client, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStateStore{
		client: client,
		prefix: prefix,
	}
}

// slotOrder fixes the key order used for both writes and MGET reads.
var slotOrder = []string{
	SlotPendingQueue,
	SlotVisitedURLs,
	SlotDomainStates,
	SlotRunState,
	SlotRecentErrors,
}

func (s *RedisStateStore) slotKey(runID, slot string) string {
	return fmt.Sprintf("%s:run:%s:%s", s.prefix, runID, slot)
}

func (s *RedisStateStore) runsKey() string {
	return fmt.Sprintf("%s:run-ids", s.prefix)
}

// SaveSnapshot writes all five slots and registers the run ID atomically.
func (s *RedisStateStore) SaveSnapshot(ctx context.Context, runID string, snap *coordinator.Snapshot) error {
	payloads, err := marshalSlots(snap)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, p := range payloads {
		pipe.Set(ctx, s.slotKey(runID, p.slot), p.payload, 0)
	}
	pipe.SAdd(ctx, s.runsKey(), runID)

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return fmt.Errorf("failed to save snapshot for run %s: %w", runID, execErr)
	}

	return nil
}

// LoadSnapshot reads all five slots with one MGET. Returns (nil, nil) when
// no slot exists; individual missing slots hydrate as empty.
func (s *RedisStateStore) LoadSnapshot(ctx context.Context, runID string) (*coordinator.Snapshot, error) {
	keys := make([]string, 0, len(slotOrder))
	for _, slot := range slotOrder {
		keys = append(keys, s.slotKey(runID, slot))
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for run %s: %w", runID, err)
	}

	snap := &coordinator.Snapshot{}
	found := false

	for i, val := range vals {
		if val == nil {
			continue
		}

		payload, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected payload type for slot %s of run %s", slotOrder[i], runID)
		}

		if unmarshalErr := unmarshalSlot(snap, snapshotRow{Slot: slotOrder[i], Payload: []byte(payload)}); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode snapshot for run %s: %w", runID, unmarshalErr)
		}

		found = true
	}

	if !found {
		return nil, nil
	}

	return snap, nil
}

// ListRunIDs returns every registered run ID in stable order.
func (s *RedisStateStore) ListRunIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.runsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run ids: %w", err)
	}

	sort.Strings(ids)

	return ids, nil
}

// DeleteSnapshot removes the slots and the run ID registration together.
func (s *RedisStateStore) DeleteSnapshot(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	for _, slot := range slotOrder {
		pipe.Del(ctx, s.slotKey(runID, slot))
	}
	pipe.SRem(ctx, s.runsKey(), runID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot for run %s: %w", runID, err)
	}

	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
