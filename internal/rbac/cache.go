package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKey       = "rbac:roles:snapshot"
	invalidateChannel = "rbac:roles:invalidate"
)

// SnapshotCache shares the last loaded role set between instances and fans out
// invalidation notices over Redis pub/sub. A nil cache is a no-op.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Save stores the role set.
func (c *SnapshotCache) Save(ctx context.Context, roles []Role) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, raw, c.ttl).Err()
}

// Load returns the cached role set. The boolean is false on a cache miss.
func (c *SnapshotCache) Load(ctx context.Context) ([]Role, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var roles []Role
	if err := json.Unmarshal(payload, &roles); err != nil {
		return nil, false, err
	}
	return roles, true, nil
}

// Publish announces that role definitions changed.
func (c *SnapshotCache) Publish(ctx context.Context, version uint64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publish(ctx, invalidateChannel, strconv.FormatUint(version, 10)).Err()
}

// Subscribe invokes fn for every invalidation notice until ctx is done. The
// subscription is confirmed before Subscribe returns.
func (c *SnapshotCache) Subscribe(ctx context.Context, fn func(context.Context)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, invalidateChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				fn(ctx)
			}
		}
	}()
	return nil
}
