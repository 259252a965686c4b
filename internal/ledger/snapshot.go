package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Snapshot is the per-location ledger view served to UIs for capping hints.
// It is derived data: the engine re-checks stock at transition time
// regardless of what a client last displayed.
type Snapshot struct {
	LocationID int64     `json:"location_id"`
	Levels     []Level   `json:"levels"`
	TakenAt    time.Time `json:"taken_at"`
}

// SnapshotCache serves location snapshots from redis with a short TTL,
// collapsing concurrent rebuilds through singleflight.
type SnapshotCache struct {
	repo  RepositoryPort
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewSnapshotCache builds a SnapshotCache. A nil redis client disables
// caching and every call hits the repository.
func NewSnapshotCache(repo RepositoryPort, client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{repo: repo, redis: client, ttl: ttl}
}

func snapshotKey(locationID int64) string {
	return fmt.Sprintf("ledger:snapshot:%d", locationID)
}

// Get returns the snapshot for a location.
func (c *SnapshotCache) Get(ctx context.Context, locationID int64) (Snapshot, error) {
	key := snapshotKey(locationID)

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return snap, nil
			}
		}
	}

	resultCh := c.group.DoChan(key, func() (any, error) {
		return c.build(ctx, locationID)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Invalidate drops the cached snapshot after a ledger mutation.
func (c *SnapshotCache) Invalidate(ctx context.Context, locationID int64) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, snapshotKey(locationID)).Err()
}

func (c *SnapshotCache) build(ctx context.Context, locationID int64) (Snapshot, error) {
	levels, err := c.repo.LevelsAt(ctx, locationID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{LocationID: locationID, Levels: levels, TakenAt: time.Now().UTC()}
	if c.redis != nil {
		if raw, err := json.Marshal(snap); err == nil {
			_ = c.redis.Set(ctx, snapshotKey(locationID), raw, c.ttl).Err()
		}
	}
	return snap, nil
}
