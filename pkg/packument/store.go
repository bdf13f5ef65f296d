// Package packument caches registry documents in front of a registry client.
//
// A [Store] is the single place where resolution touches the network. It
// never returns an error: a nil packument means the package could not be
// obtained, which resolution treats as "not installable" and moves on.
//
// Entries are fresh for [Options.MaxAge]. After that, and for another
// [Options.StaleTTL], the stale document is returned immediately while a
// background refresh replaces it (stale-while-revalidate). Concurrent misses
// and refreshes for the same name share one registry request.
package packument

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/observability"
)

const (
	DefaultMaxAge   = time.Hour
	DefaultStaleTTL = 24 * time.Hour

	// fetchTimeout bounds registry requests. They run detached from the
	// caller so that one cancelled caller cannot fail the others sharing
	// the request.
	fetchTimeout = 30 * time.Second

	keyType = "packument"
)

// Source fetches packuments from a registry.
type Source interface {
	Packument(ctx context.Context, name string) (*deps.Packument, error)
}

// Options configures a [Store]. Zero values select the defaults.
type Options struct {
	MaxAge   time.Duration // Freshness window (default: 1h)
	StaleTTL time.Duration // How long past MaxAge a stale entry is served (default: 24h)
	Refresh  bool          // Ignore cached entries; results are still written back
	Keyer    cache.Keyer   // Cache key layout (default: cache.DefaultKeyer)
	Logger   *log.Logger   // Fetch failures at debug level (default: discard)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.StaleTTL <= 0 {
		opts.StaleTTL = DefaultStaleTTL
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// entry is the cached form of a packument.
type entry struct {
	Packument *deps.Packument `json:"packument"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Store is a stale-while-revalidate packument cache. It implements
// [deps.Fetcher] and is safe for concurrent use.
type Store struct {
	source Source
	cache  cache.Cache
	opts   Options
	now    func() time.Time

	group singleflight.Group
	wg    sync.WaitGroup

	mu         sync.Mutex
	refreshing map[string]bool
}

// NewStore creates a Store reading through c to source.
func NewStore(source Source, c cache.Cache, opts Options) *Store {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Store{
		source:     source,
		cache:      c,
		opts:       opts.WithDefaults(),
		now:        time.Now,
		refreshing: make(map[string]bool),
	}
}

var _ deps.Fetcher = (*Store)(nil)

// Fetch returns the packument for name, or nil if it is unavailable.
func (s *Store) Fetch(ctx context.Context, name string) *deps.Packument {
	hooks := observability.Cache()

	if !s.opts.Refresh {
		if e, ok := s.load(ctx, name); ok {
			age := s.now().Sub(e.FetchedAt)
			switch {
			case age < s.opts.MaxAge:
				hooks.OnCacheHit(ctx, keyType)
				return e.Packument
			case age < s.opts.MaxAge+s.opts.StaleTTL:
				hooks.OnCacheStale(ctx, keyType)
				s.refreshAsync(ctx, name)
				return e.Packument
			}
		}
	}

	hooks.OnCacheMiss(ctx, keyType)
	return s.fetch(ctx, name)
}

// Wait blocks until all background refreshes have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) load(ctx context.Context, name string) (entry, bool) {
	data, ok, err := s.cache.Get(ctx, s.opts.Keyer.PackumentKey(name))
	if err != nil {
		s.opts.Logger.Debug("packument cache read failed", "name", name, "err", err)
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Packument == nil {
		return entry{}, false
	}
	return e, true
}

// fetch performs one collapsed registry request and stores the result.
// Callers share the request but each waits only as long as its own ctx.
func (s *Store) fetch(ctx context.Context, name string) *deps.Packument {
	ch := s.group.DoChan(name, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		pk, err := s.source.Packument(fctx, name)
		if err != nil {
			s.opts.Logger.Debug("packument fetch failed", "name", name, "err", err)
			return (*deps.Packument)(nil), nil
		}
		s.store(fctx, name, pk)
		return pk, nil
	})
	select {
	case <-ctx.Done():
		return nil
	case res := <-ch:
		pk, _ := res.Val.(*deps.Packument)
		return pk
	}
}

func (s *Store) store(ctx context.Context, name string, pk *deps.Packument) {
	data, err := json.Marshal(entry{Packument: pk, FetchedAt: s.now()})
	if err != nil {
		return
	}
	key := s.opts.Keyer.PackumentKey(name)
	if err := s.cache.Set(ctx, key, data, s.opts.MaxAge+s.opts.StaleTTL); err != nil {
		s.opts.Logger.Debug("packument cache write failed", "name", name, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// refreshAsync starts a background refresh unless one is already running
// for name. A failed refresh leaves the stale entry in place.
func (s *Store) refreshAsync(ctx context.Context, name string) {
	s.mu.Lock()
	if s.refreshing[name] {
		s.mu.Unlock()
		return
	}
	s.refreshing[name] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.refreshing, name)
			s.mu.Unlock()
		}()

		s.fetch(context.WithoutCancel(ctx), name)
	}()
}
