package packument

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/deps"
)

// fakeSource returns a packument whose only version is the current value of
// version, or err when set.
type fakeSource struct {
	mu      sync.Mutex
	version string
	err     error
	gate    chan struct{}
	calls   atomic.Int32
}

func (f *fakeSource) Packument(ctx context.Context, name string) (*deps.Packument, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &deps.Packument{
		Name:     name,
		DistTags: map[string]string{"latest": f.version},
		Versions: map[string]*deps.PackumentVersion{f.version: {}},
	}, nil
}

func (f *fakeSource) set(version string, err error) {
	f.mu.Lock()
	f.version, f.err = version, err
	f.mu.Unlock()
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(src Source, c cache.Cache, opts Options) (*Store, *clock) {
	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(src, c, opts)
	s.now = clk.Now
	return s, clk
}

func latest(pk *deps.Packument) string {
	if pk == nil {
		return ""
	}
	return pk.DistTags["latest"]
}

func TestFetchCachesResult(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0"}
	s, _ := newTestStore(src, cache.NewMemoryCache(), Options{})

	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	src.set("2.0.0", nil)
	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	require.EqualValues(t, 1, src.calls.Load())
}

func TestFetchFailureReturnsNil(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("registry down")}
	s, _ := newTestStore(src, cache.NewMemoryCache(), Options{})

	require.Nil(t, s.Fetch(ctx, "react"))

	// Failures are not cached.
	src.set("1.0.0", nil)
	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	require.EqualValues(t, 2, src.calls.Load())
}

func TestFetchStaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0"}
	s, clk := newTestStore(src, cache.NewMemoryCache(), Options{MaxAge: time.Hour, StaleTTL: 24 * time.Hour})

	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))

	clk.Advance(2 * time.Hour)
	src.set("1.1.0", nil)

	// The stale value is served at once; the refresh happens behind it.
	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	s.Wait()
	require.EqualValues(t, 2, src.calls.Load())

	require.Equal(t, "1.1.0", latest(s.Fetch(ctx, "react")))
	require.EqualValues(t, 2, src.calls.Load())
}

func TestFetchStaleRefreshFailureKeepsStale(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0"}
	s, clk := newTestStore(src, cache.NewMemoryCache(), Options{})

	s.Fetch(ctx, "react")
	clk.Advance(2 * time.Hour)
	src.set("", errors.New("registry down"))

	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	s.Wait()
	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
}

func TestFetchExpiredBeyondStaleWindow(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0"}
	s, clk := newTestStore(src, cache.NewMemoryCache(), Options{MaxAge: time.Hour, StaleTTL: time.Hour})

	s.Fetch(ctx, "react")
	clk.Advance(3 * time.Hour)
	src.set("3.0.0", nil)

	require.Equal(t, "3.0.0", latest(s.Fetch(ctx, "react")))
	require.EqualValues(t, 2, src.calls.Load())
}

func TestFetchCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0", gate: make(chan struct{})}
	s, _ := newTestStore(src, cache.NewMemoryCache(), Options{})

	var wg sync.WaitGroup
	results := make([]*deps.Packument, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Fetch(ctx, "lodash")
		}()
	}

	// Let every goroutine reach the in-flight request before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	require.EqualValues(t, 1, src.calls.Load())
	for _, pk := range results {
		require.Equal(t, "1.0.0", latest(pk))
	}
}

func TestFetchCancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &fakeSource{version: "1.0.0", gate: make(chan struct{})}
	s, _ := newTestStore(src, cache.NewMemoryCache(), Options{})

	actx, cancel := context.WithCancel(context.Background())
	first := make(chan *deps.Packument, 1)
	go func() { first <- s.Fetch(actx, "lodash") }()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *deps.Packument, 1)
	go func() { second <- s.Fetch(context.Background(), "lodash") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.Nil(t, <-first)

	close(src.gate)
	require.Equal(t, "1.0.0", latest(<-second))
}

func TestFetchSingleRefreshPerName(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{version: "1.0.0"}
	s, clk := newTestStore(src, cache.NewMemoryCache(), Options{})

	s.Fetch(ctx, "react")
	clk.Advance(2 * time.Hour)

	src.gate = make(chan struct{})
	for range 5 {
		require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
	}
	close(src.gate)
	s.Wait()

	require.EqualValues(t, 2, src.calls.Load())
}

func TestFetchRefreshOption(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	src := &fakeSource{version: "1.0.0"}

	warm, _ := newTestStore(src, c, Options{})
	warm.Fetch(ctx, "react")

	src.set("2.0.0", nil)
	cold, _ := newTestStore(src, c, Options{Refresh: true})
	require.Equal(t, "2.0.0", latest(cold.Fetch(ctx, "react")))

	// The refreshed value was written back for everyone else.
	require.Equal(t, "2.0.0", latest(warm.Fetch(ctx, "react")))
}

type failingCache struct{ cache.NullCache }

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestFetchBackendErrorIsMiss(t *testing.T) {
	src := &fakeSource{version: "1.0.0"}
	s, _ := newTestStore(src, failingCache{}, Options{})

	require.Equal(t, "1.0.0", latest(s.Fetch(context.Background(), "react")))
}

func TestFetchCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	require.NoError(t, c.Set(ctx, cache.NewDefaultKeyer().PackumentKey("react"), []byte("{not json"), 0))

	src := &fakeSource{version: "1.0.0"}
	s, _ := newTestStore(src, c, Options{})
	require.Equal(t, "1.0.0", latest(s.Fetch(ctx, "react")))
}

func TestStoreAsResolverFetcher(t *testing.T) {
	src := &fakeSource{version: "1.0.0"}
	s, _ := newTestStore(src, nil, Options{})

	tree, err := deps.NewResolver(s, deps.Config{}).Resolve(context.Background(), "solo", "latest", deps.Options{})
	require.NoError(t, err)
	require.Contains(t, tree, "solo@1.0.0")
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	require.Equal(t, DefaultMaxAge, opts.MaxAge)
	require.Equal(t, DefaultStaleTTL, opts.StaleTTL)
	require.NotNil(t, opts.Keyer)
	require.NotNil(t, opts.Logger)
}
