package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// CatalogCache is a read-through cache over a catalog.Repository. Redis
// failures are logged and the read goes to the inner repository. Not-found
// results are not cached.
type CatalogCache struct {
	inner catalog.Repository
	cache *Cache
	ttl   time.Duration
	log   *logger.Logger
}

var _ catalog.Repository = (*CatalogCache)(nil)

// NewCatalogCache wraps inner. A non-positive ttl means TTLCatalog.
func NewCatalogCache(inner catalog.Repository, cache *Cache, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogCache{inner: inner, cache: cache, ttl: ttl, log: log.Named("catalog_cache")}
}

func courseKey(id shared.CourseID) string  { return fmt.Sprintf("%scourse:%d", PrefixCatalog, id) }
func moduleKey(id shared.ModuleID) string  { return fmt.Sprintf("%smodule:%d", PrefixCatalog, id) }
func modulesKey(id shared.CourseID) string { return fmt.Sprintf("%smodules:%d", PrefixCatalog, id) }
func coursesKey() string                   { return PrefixCatalog + "courses" }
func tagsKey() string                      { return PrefixCatalog + "tags" }

// readThrough returns the cached value at key or loads and stores it.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error)) (T, error) {
	var cached T
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("cache read failed", logger.String("key", key), logger.Err(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.cache.Set(ctx, key, v, c.ttl); err != nil {
		c.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
	}
	return v, nil
}

// GetCourse implements catalog.Repository.
func (c *CatalogCache) GetCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	return readThrough(ctx, c, courseKey(id), func() (*catalog.Course, error) {
		return c.inner.GetCourse(ctx, id)
	})
}

// ListCourses implements catalog.Repository.
func (c *CatalogCache) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	return readThrough(ctx, c, coursesKey(), func() ([]*catalog.Course, error) {
		return c.inner.ListCourses(ctx)
	})
}

// GetModule implements catalog.Repository.
func (c *CatalogCache) GetModule(ctx context.Context, id shared.ModuleID) (*catalog.Module, error) {
	return readThrough(ctx, c, moduleKey(id), func() (*catalog.Module, error) {
		return c.inner.GetModule(ctx, id)
	})
}

// ListModules implements catalog.Repository.
func (c *CatalogCache) ListModules(ctx context.Context, courseID shared.CourseID) ([]*catalog.Module, error) {
	return readThrough(ctx, c, modulesKey(courseID), func() ([]*catalog.Module, error) {
		return c.inner.ListModules(ctx, courseID)
	})
}

// ListTags implements catalog.Repository.
func (c *CatalogCache) ListTags(ctx context.Context) ([]*catalog.Tag, error) {
	return readThrough(ctx, c, tagsKey(), func() ([]*catalog.Tag, error) {
		return c.inner.ListTags(ctx)
	})
}

// Invalidate drops every cached catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	n, err := c.cache.DeleteByPattern(ctx, PrefixCatalog+"*")
	if err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	c.log.Debug("catalog cache invalidated", logger.Int("keys", n))
	return nil
}
