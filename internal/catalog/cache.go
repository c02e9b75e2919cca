package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"protein-advisor/internal/common/database"
	"protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
	"protein-advisor/internal/models"

	"github.com/redis/go-redis/v9"
)

// maxFailureBackoff caps how long a stale snapshot is served before the
// source is tried again after a failed refresh.
const maxFailureBackoff = 30 * time.Second

// CachedStore keeps one in-process snapshot and reloads it once it is older
// than the refresh interval. With a redis client configured the built
// snapshot is shared between processes under cacheKey.
type CachedStore struct {
	source   Source
	redis    *database.RedisClient
	cacheKey string
	ttl      time.Duration
	logger   logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	current   *models.Catalog
	expiresAt time.Time
}

type CachedStoreOption func(*CachedStore)

// WithRedis enables the shared snapshot layer.
func WithRedis(rc *database.RedisClient, key string) CachedStoreOption {
	return func(s *CachedStore) {
		s.redis = rc
		s.cacheKey = key
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CachedStoreOption {
	return func(s *CachedStore) { s.now = now }
}

func NewCachedStore(source Source, ttl time.Duration, log logger.Logger, opts ...CachedStoreOption) *CachedStore {
	s := &CachedStore{
		source: source,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "catalog", "source": source.Name()}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current catalog, reloading it when stale. A failed
// reload with a previous snapshot in hand serves the stale one; a failed
// first load is returned to the caller.
func (s *CachedStore) Snapshot(ctx context.Context) (*models.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.current != nil && now.Before(s.expiresAt) {
		return s.current, nil
	}

	cat, expiresAt, err := s.load(ctx, now)
	if err != nil {
		metrics.CatalogLoads.WithLabelValues(s.source.Name(), "error").Inc()
		if s.current != nil {
			s.logger.Warn("catalog refresh failed, serving stale snapshot", map[string]interface{}{
				"error":    err.Error(),
				"loadedAt": s.current.LoadedAt,
			})
			backoff := s.ttl
			if backoff > maxFailureBackoff {
				backoff = maxFailureBackoff
			}
			s.expiresAt = now.Add(backoff)
			return s.current, nil
		}
		return nil, err
	}

	metrics.CatalogLoads.WithLabelValues(s.source.Name(), "ok").Inc()
	metrics.CatalogProducts.Set(float64(cat.Len()))
	s.current = cat
	s.expiresAt = expiresAt
	return cat, nil
}

// Invalidate forces the next Snapshot call to reload from the source.
func (s *CachedStore) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, s.cacheKey); err != nil {
			s.logger.Warn("failed to drop shared catalog snapshot", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *CachedStore) load(ctx context.Context, now time.Time) (*models.Catalog, time.Time, error) {
	if cat, ok := s.readShared(ctx, now); ok {
		return cat, time.UnixMilli(cat.LoadedAt).Add(s.ttl), nil
	}

	table, err := s.source.FetchTable(ctx)
	if err != nil {
		return nil, time.Time{}, errors.NewCatalogLoadFailedError(s.source.Name(), err)
	}
	cat, err := BuildSnapshot(table, s.source.Name(), now, s.logger)
	if err != nil {
		return nil, time.Time{}, err
	}

	s.logger.Info("catalog snapshot loaded", map[string]interface{}{"products": cat.Len()})
	s.writeShared(ctx, cat)
	return cat, now.Add(s.ttl), nil
}

func (s *CachedStore) readShared(ctx context.Context, now time.Time) (*models.Catalog, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, s.cacheKey)
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			s.logger.Warn("shared catalog snapshot unavailable, fetching directly", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var payload models.Catalog
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("shared catalog snapshot is corrupt, fetching directly", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if !time.UnixMilli(payload.LoadedAt).Add(s.ttl).After(now) {
		return nil, false
	}
	return models.NewCatalog(payload.Products, payload.Source, payload.LoadedAt), true
}

func (s *CachedStore) writeShared(ctx context.Context, cat *models.Catalog) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(cat)
	if err != nil {
		s.logger.Warn("failed to encode catalog snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey, data, s.ttl); err != nil {
		s.logger.Warn("failed to share catalog snapshot", map[string]interface{}{"error": err.Error()})
	}
}

// StaticStore serves a fixed snapshot. Workers and tests that already hold
// a catalog use it.
type StaticStore struct {
	Catalog *models.Catalog
}

func (s StaticStore) Snapshot(context.Context) (*models.Catalog, error) {
	if s.Catalog == nil {
		return nil, errors.NewCatalogEmptyError("static")
	}
	return s.Catalog, nil
}
