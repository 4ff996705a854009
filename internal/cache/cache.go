package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/logger"
)

// Cache is the minimal cache surface used to front catalog lookups during
// batch calculations
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

type inMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates an in-memory cache with the configured TTL
func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) Cache {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	log.Debugw("initializing in-memory cache", "ttl", ttl)
	return &inMemoryCache{
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *inMemoryCache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

func (c *inMemoryCache) Set(key string, value any) {
	c.store.SetDefault(key, value)
}

func (c *inMemoryCache) Delete(key string) {
	c.store.Delete(key)
}

// GetTyped attempts to convert a cache value to the requested type
func GetTyped[T any](c Cache, key string) (*T, bool) {
	value, ok := c.Get(key)
	if !ok || value == nil {
		return nil, false
	}
	if typed, ok := value.(*T); ok {
		return typed, true
	}
	return nil, false
}
