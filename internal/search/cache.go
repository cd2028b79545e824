// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("search cache: key not found")

// Cache stores encoded search responses by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryCache keeps responses in process memory.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns an in-memory cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

// Get returns the value stored under key.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

// Set stores value under key for ttl.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

// RedisCache keeps responses in redis so they survive restarts and are
// shared between server instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the redis server at addr.
func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping checks the redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Get returns the value stored under key.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

// Set stores value under key for ttl.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// CachedProvider serves repeated queries from a Cache. Only successful
// responses are stored; cache failures fall through to the provider.
type CachedProvider struct {
	Next    Provider
	Cache   Cache
	TTL     time.Duration
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Search returns a cached response for req if one exists, otherwise calls
// the wrapped provider and stores its response.
func (p *CachedProvider) Search(ctx context.Context, req Request) (*Response, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	key, err := cacheKey(req)
	if err != nil {
		return nil, err
	}

	if b, err := p.Cache.Get(ctx, key); err == nil {
		var resp Response
		if err := json.Unmarshal(b, &resp); err == nil {
			p.Metrics.ObserveCache(true)
			log.Debug("search cache hit", zap.String("query", req.Query))
			return &resp, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Warn("search cache read failed", zap.Error(err))
	}
	p.Metrics.ObserveCache(false)

	resp, err := p.Next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(resp); err == nil {
		if err := p.Cache.Set(ctx, key, b, p.TTL); err != nil {
			log.Warn("search cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// cacheKey hashes the full request so that queries differing only in
// options do not share an entry.
func cacheKey(req Request) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return "search:" + hex.EncodeToString(sum[:]), nil
}
