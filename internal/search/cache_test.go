// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
)

type countingProvider struct {
	calls int
	resp  *Response
	err   error
}

func (c *countingProvider) Search(context.Context, Request) (*Response, error) {
	c.calls++
	return c.resp, c.err
}

func TestCachedProvider_MemoryHit(t *testing.T) {
	next := &countingProvider{resp: &Response{Results: []RawResult{{Title: "t", URL: "u", Content: "c"}}}}
	m := metrics.New(prometheus.NewRegistry())
	p := &CachedProvider{Next: next, Cache: NewMemoryCache(time.Minute), TTL: time.Minute, Metrics: m}

	req := Request{Query: "Iguanodon dinosaur paleontology"}
	first, err := p.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCacheLooks.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCacheLooks.WithLabelValues("miss")))
}

func TestCachedProvider_DifferentOptionsMiss(t *testing.T) {
	next := &countingProvider{resp: &Response{}}
	p := &CachedProvider{Next: next, Cache: NewMemoryCache(time.Minute), TTL: time.Minute}

	_, _ = p.Search(context.Background(), Request{Query: "q", MaxResults: 2})
	_, _ = p.Search(context.Background(), Request{Query: "q", MaxResults: 5})

	assert.Equal(t, 2, next.calls)
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	next := &countingProvider{err: errors.New("HTTP 503")}
	p := &CachedProvider{Next: next, Cache: NewMemoryCache(time.Minute), TTL: time.Minute}

	_, err := p.Search(context.Background(), Request{Query: "q"})
	require.Error(t, err)
	_, err = p.Search(context.Background(), Request{Query: "q"})
	require.Error(t, err)

	assert.Equal(t, 2, next.calls)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("DINOWIKI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DINOWIKI_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c := NewRedisCache(addr)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	key := "search:test-" + time.Now().Format(time.RFC3339Nano)
	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, []byte(`{"query":"q"}`), time.Minute))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"q"}`, string(got))
}
