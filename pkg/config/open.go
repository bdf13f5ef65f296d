package config

import (
	"context"
	"net/url"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/integrations/npm"
)

// Keyer returns the cache key layout for the configured registry. Entries
// for the public registry are unscoped; any other registry gets its host as
// prefix so that a shared backend never mixes documents of two registries.
func (c Config) Keyer() cache.Keyer {
	if c.Registry.URL == npm.DefaultRegistry {
		return cache.NewDefaultKeyer()
	}
	u, err := url.Parse(c.Registry.URL)
	if err != nil || u.Host == "" {
		return cache.NewScopedKeyer(nil, c.Registry.URL+":")
	}
	return cache.NewScopedKeyer(nil, u.Host+":")
}

// OpenCache connects the configured cache backend.
func (c CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendMemory, "":
		return cache.NewMemoryCache(), nil
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendFile:
		return cache.NewFileCache(c.Dir)
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis at %s", c.RedisAddr)
		}
		return rc, nil
	case BackendMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoOptions{
			URI:        c.MongoURI,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongo")
		}
		return mc, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache.backend %q", c.Backend)
	}
}
