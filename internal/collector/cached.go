package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/metrics"
	"github.com/newthinker/ladder/internal/storage/archive"
	"go.uber.org/zap"
)

// Cached wraps a Provider and keeps fetched series in archive storage so
// repeated runs over the same range do not hit the upstream source.
type Cached struct {
	upstream Provider
	store    archive.Storage
	refresh  bool
	logger   *zap.Logger
	metrics  *metrics.Registry
	now      func() time.Time
}

// CacheOption configures a Cached provider
type CacheOption func(*Cached)

// WithRefresh forces a fetch from upstream, overwriting any cached entry
func WithRefresh(refresh bool) CacheOption {
	return func(c *Cached) {
		c.refresh = refresh
	}
}

// WithCacheLogger sets the logger for cache hits and misses
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *Cached) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheMetrics records cache lookups into reg
func WithCacheMetrics(reg *metrics.Registry) CacheOption {
	return func(c *Cached) {
		c.metrics = reg
	}
}

// WithClock sets the clock used to resolve an open end date
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cached) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCached creates a caching provider in front of upstream
func NewCached(upstream Provider, store archive.Storage, opts ...CacheOption) *Cached {
	c := &Cached{
		upstream: upstream,
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the upstream name so cached and uncached runs report alike
func (c *Cached) Name() string {
	return c.upstream.Name()
}

// FetchHistory serves the series from cache when present, otherwise fetches
// it from upstream and stores it. A corrupt cache entry is refetched. An open
// end is pinned to today's date so a later day misses the cache.
func (c *Cached) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	if end.IsZero() {
		now := c.now().UTC()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	key := CacheKey(c.upstream.Name(), symbol, start, end)

	if !c.refresh {
		series, ok := c.load(ctx, key)
		c.recordLookup(ok)
		if ok {
			c.logger.Debug("price cache hit", zap.String("key", key), zap.Int("bars", len(series)))
			return series, nil
		}
	}

	series, err := c.upstream.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("encoding series: %w", err)
	}
	if err := c.store.Write(ctx, key, data); err != nil {
		// Write failures are not fatal to the run.
		c.logger.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
	} else {
		c.logger.Debug("price cache stored", zap.String("key", key), zap.Int("bars", len(series)))
	}
	return series, nil
}

func (c *Cached) load(ctx context.Context, key string) (core.Series, bool) {
	exists, err := c.store.Exists(ctx, key)
	if err != nil || !exists {
		return nil, false
	}

	data, err := c.store.Read(ctx, key)
	if err != nil {
		c.logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var series core.Series
	if err := json.Unmarshal(data, &series); err != nil {
		c.logger.Warn("price cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if len(series) == 0 {
		return nil, false
	}
	return series, true
}

func (c *Cached) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

// CacheKey builds the storage path of a cached series
func CacheKey(source, symbol string, start, end time.Time) string {
	return fmt.Sprintf("prices/%s/%s/%s_%s.json",
		source, strings.ToUpper(symbol), boundLabel(start), boundLabel(end))
}

func boundLabel(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("20060102")
}
