package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LookupObserver receives hit/miss notifications. *observability.Metrics satisfies it.
type LookupObserver interface {
	CacheLookup(entity string, hit bool)
}

// JSON is a read-through cache storing JSON payloads under a namespace.
// A nil *JSON, or one without a client, always calls the loader.
// Redis failures are logged and fall through to the loader; the cache never
// decides correctness.
type JSON struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	observer  LookupObserver
	logger    *slog.Logger
	group     singleflight.Group
}

// NewJSON builds a JSON cache for entity namespace.
func NewJSON(client *redis.Client, namespace string, ttl time.Duration, observer LookupObserver, logger *slog.Logger) *JSON {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSON{client: client, namespace: namespace, ttl: ttl, observer: observer, logger: logger}
}

// Key composes a namespaced cache key.
func (c *JSON) Key(parts ...string) string {
	if c == nil {
		return strings.Join(parts, ":")
	}
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Fetch decodes the cached value for key into dest, or calls loader, stores
// its result and decodes that. Concurrent misses on one key share a loader call.
// The loaded value is only written when the key is still absent, so a loader
// that read before a concurrent Store never replaces the newer entry.
func (c *JSON) Fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("platform/cache: loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, dest, loader)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(payload, dest); jsonErr == nil {
			c.observe(true)
			return nil
		}
		c.logger.Warn("cache payload undecodable", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	c.observe(false)

	ch := c.group.DoChan(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.SetNX(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Store overwrites key with value. Writers call it after their change commits.
// On failure the key is dropped instead; if that fails too a stale entry lives
// until its TTL.
func (c *JSON) Store(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		c.Delete(ctx, key)
	}
}

// Delete drops keys. Failures are logged; a stale entry then lives until its TTL.
func (c *JSON) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

func (c *JSON) observe(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(c.namespace, hit)
	}
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
