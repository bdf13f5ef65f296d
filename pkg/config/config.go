// Package config loads deptree settings.
//
// Settings are layered, later layers winning:
//
//  1. Built-in defaults ([Default])
//  2. A TOML file, $XDG_CONFIG_HOME/deptree/config.toml unless overridden
//  3. DEPTREE_* environment variables ([Config.ApplyEnv])
//  4. Command-line flags, applied by the CLI
//
// A minimal file:
//
//	[registry]
//	url = "https://registry.npmjs.org"
//	timeout = "10s"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[platform]
//	os = "darwin"
//	cpu = "arm64"
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/integrations"
	"github.com/matzehuels/deptree/pkg/integrations/npm"
	"github.com/matzehuels/deptree/pkg/packument"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

const appName = "deptree"

// Config is the complete deptree configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Cache    CacheConfig    `toml:"cache"`
	Resolve  ResolveConfig  `toml:"resolve"`
	Platform PlatformConfig `toml:"platform"`
	Server   ServerConfig   `toml:"server"`
}

type RegistryConfig struct {
	URL     string        `toml:"url"`
	Timeout time.Duration `toml:"timeout"`
	Retries int           `toml:"retries"`
}

type CacheConfig struct {
	Backend  string        `toml:"backend"`
	Dir      string        `toml:"dir"`
	MaxAge   time.Duration `toml:"max_age"`
	StaleTTL time.Duration `toml:"stale_ttl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

type ResolveConfig struct {
	Concurrency int `toml:"concurrency"`
	MaxDepth    int `toml:"max_depth"`
}

type PlatformConfig struct {
	OS   string `toml:"os"`
	CPU  string `toml:"cpu"`
	Libc string `toml:"libc"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := deps.DefaultPlatform()
	return Config{
		Registry: RegistryConfig{
			URL:     npm.DefaultRegistry,
			Timeout: integrations.DefaultTimeout,
			Retries: integrations.DefaultAttempts,
		},
		Cache: CacheConfig{
			Backend:         BackendMemory,
			Dir:             DefaultCacheDir(),
			MaxAge:          packument.DefaultMaxAge,
			StaleTTL:        packument.DefaultStaleTTL,
			RedisAddr:       "localhost:6379",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   appName,
			MongoCollection: "cache",
		},
		Resolve: ResolveConfig{
			Concurrency: deps.DefaultConcurrency,
		},
		Platform: PlatformConfig{OS: p.OS, CPU: p.CPU, Libc: p.Libc},
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// DefaultPath returns the config file location: $DEPTREE_CONFIG if set,
// otherwise config.toml in the user config directory.
func DefaultPath() string {
	if p := os.Getenv("DEPTREE_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, appName, "config.toml")
}

// DefaultCacheDir returns the directory used by the file cache backend.
func DefaultCacheDir() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserCacheDir(); err != nil {
			return filepath.Join(os.TempDir(), appName)
		}
	}
	return filepath.Join(dir, appName)
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path means [DefaultPath], which may be absent; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, mustExist bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if mustExist {
			return errors.New(errors.ErrCodeInvalidConfig, "config file not found: %s", path)
		}
		return nil
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if err := errors.ValidateURL(c.Registry.URL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "registry.url")
	}
	if c.Registry.Timeout <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "registry.timeout must be positive")
	}
	if c.Registry.Retries < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "registry.retries must be at least 1")
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendNone:
	case BackendFile:
		if c.Cache.Dir == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	case BackendMongo:
		if c.Cache.MongoURI == "" || c.Cache.MongoDatabase == "" || c.Cache.MongoCollection == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.mongo_uri, mongo_database and mongo_collection are required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.MaxAge <= 0 || c.Cache.StaleTTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.max_age must be positive and cache.stale_ttl not negative")
	}

	if c.Resolve.Concurrency < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "resolve.concurrency must be at least 1")
	}
	if c.Resolve.MaxDepth < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "resolve.max_depth cannot be negative")
	}
	if c.Platform.OS == "" || c.Platform.CPU == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "platform.os and platform.cpu are required")
	}
	return nil
}

// TargetPlatform returns the configured platform.
func (c Config) TargetPlatform() deps.Platform {
	return deps.Platform{OS: c.Platform.OS, CPU: c.Platform.CPU, Libc: c.Platform.Libc}
}

// ClientOptions returns the registry client settings.
func (c Config) ClientOptions() integrations.ClientOptions {
	return integrations.ClientOptions{
		Timeout:  c.Registry.Timeout,
		Attempts: c.Registry.Retries,
	}
}
