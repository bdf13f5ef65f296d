package cache

import "github.com/matzehuels/deptree/pkg/deps"

// Keyer generates cache keys for the values deptree stores.
type Keyer interface {
	// PackumentKey is the key of a registry document. Package names are
	// used verbatim so entries stay human-readable in Redis and Mongo.
	PackumentKey(name string) string

	// TreeKey is the key of an encoded resolution result.
	TreeKey(name, rng string, opts TreeKeyOpts) string
}

// TreeKeyOpts holds every input besides name and range that changes the
// outcome of a resolution.
type TreeKeyOpts struct {
	TrackDepth bool          `json:"track_depth"`
	MaxDepth   int           `json:"max_depth,omitempty"`
	Platform   deps.Platform `json:"platform"`
	Registry   string        `json:"registry,omitempty"`
}

// DefaultKeyer is the unscoped key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the unscoped key layout.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// PackumentKey returns "packument:<name>".
func (DefaultKeyer) PackumentKey(name string) string {
	return "packument:" + name
}

// TreeKey returns "tree:<sha256>" over name, range and options.
func (DefaultKeyer) TreeKey(name, rng string, opts TreeKeyOpts) string {
	return hashKey("tree", name, rng, opts)
}

// ScopedKeyer wraps a Keyer with a prefix so that several registries (or
// several deployments) can share one Redis or Mongo backend without
// colliding.
//
//	keyer := cache.NewScopedKeyer(nil, "registry.example.com:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) PackumentKey(name string) string {
	return k.prefix + k.inner.PackumentKey(name)
}

func (k *ScopedKeyer) TreeKey(name, rng string, opts TreeKeyOpts) string {
	return k.prefix + k.inner.TreeKey(name, rng, opts)
}
