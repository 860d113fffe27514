package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshots keeps last-known-good answers in Redis so a restarted
// client can still serve stale data.
type RedisSnapshots struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshots stores snapshots under prefix+key. A zero ttl keeps them
// until overwritten.
func NewRedisSnapshots(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSnapshots {
	if prefix == "" {
		prefix = "roadside:snapshot:"
	}
	return &RedisSnapshots{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSnapshots) Save(ctx context.Context, key string, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, b, r.ttl).Err()
}

func (r *RedisSnapshots) Load(ctx context.Context, key string) (Snapshot, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

var _ SnapshotStore = (*RedisSnapshots)(nil)
