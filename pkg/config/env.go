package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
)

// LookupFunc has the signature of [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from DEPTREE_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", key)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", key)
		}
		*dst = d
		return nil
	}

	str("DEPTREE_REGISTRY_URL", &c.Registry.URL)
	str("DEPTREE_CACHE_BACKEND", &c.Cache.Backend)
	str("DEPTREE_CACHE_DIR", &c.Cache.Dir)
	str("DEPTREE_REDIS_ADDR", &c.Cache.RedisAddr)
	str("DEPTREE_REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("DEPTREE_MONGO_URI", &c.Cache.MongoURI)
	str("DEPTREE_MONGO_DATABASE", &c.Cache.MongoDatabase)
	str("DEPTREE_MONGO_COLLECTION", &c.Cache.MongoCollection)
	str("DEPTREE_SERVER_ADDR", &c.Server.Addr)

	for _, f := range []func() error{
		func() error { return dur("DEPTREE_REGISTRY_TIMEOUT", &c.Registry.Timeout) },
		func() error { return num("DEPTREE_REGISTRY_RETRIES", &c.Registry.Retries) },
		func() error { return dur("DEPTREE_CACHE_MAX_AGE", &c.Cache.MaxAge) },
		func() error { return dur("DEPTREE_CACHE_STALE_TTL", &c.Cache.StaleTTL) },
		func() error { return num("DEPTREE_REDIS_DB", &c.Cache.RedisDB) },
		func() error { return num("DEPTREE_CONCURRENCY", &c.Resolve.Concurrency) },
		func() error { return num("DEPTREE_MAX_DEPTH", &c.Resolve.MaxDepth) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	if v, ok := lookup("DEPTREE_PLATFORM"); ok && v != "" {
		c.SetPlatform(deps.ParsePlatform(v))
	}
	return nil
}

// SetPlatform replaces the target platform.
func (c *Config) SetPlatform(p deps.Platform) {
	c.Platform = PlatformConfig{OS: p.OS, CPU: p.CPU, Libc: p.Libc}
}
