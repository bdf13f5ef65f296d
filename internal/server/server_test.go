package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
)

func newPackument(name, version string, dependencies map[string]string) *deps.Packument {
	return &deps.Packument{
		Name:     name,
		DistTags: map[string]string{"latest": version},
		Versions: map[string]*deps.PackumentVersion{
			version: {Dependencies: dependencies, Dist: deps.Dist{UnpackedSize: 100}},
		},
	}
}

type testEnv struct {
	srv   *Server
	cache *cache.MemoryCache
	calls atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := map[string]*deps.Packument{
		"app":         newPackument("app", "1.2.0", map[string]string{"lib": "^2.0.0", "@babel/core": "^7.0.0"}),
		"lib":         newPackument("lib", "2.1.0", nil),
		"@babel/core": newPackument("@babel/core", "7.24.0", nil),
	}

	env := &testEnv{cache: cache.NewMemoryCache()}
	fetcher := deps.FetcherFunc(func(ctx context.Context, name string) *deps.Packument {
		env.calls.Add(1)
		return registry[name]
	})
	env.srv = New(Options{
		Fetcher:  fetcher,
		Resolver: deps.NewResolver(fetcher, deps.Config{}),
		Cache:    env.cache,
		Registry: "https://registry.example.com",
	})
	return env
}

func (e *testEnv) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestTree(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/tree/app", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[treeResponse](t, rec)
	require.Equal(t, "app", resp.Package)
	require.Equal(t, "1.2.0", resp.Version)
	require.Equal(t, 3, resp.Count)
	require.Equal(t, int64(300), resp.TotalSize)
	require.ElementsMatch(t, []string{"app@1.2.0", "lib@2.1.0", "@babel/core@7.24.0"}, resp.Packages.Keys())

	for _, p := range resp.Packages {
		require.Empty(t, p.Depth)
		require.Nil(t, p.Path)
	}
	require.NotContains(t, rec.Body.String(), `"depth"`)
}

func TestTreeWithDepth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/tree/app?depth=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[treeResponse](t, rec)
	require.Equal(t, deps.DepthRoot, resp.Packages["app@1.2.0"].Depth)
	require.Equal(t, deps.DepthDirect, resp.Packages["lib@2.1.0"].Depth)
	require.Equal(t, []string{"app@1.2.0", "lib@2.1.0"}, resp.Packages["lib@2.1.0"].Path)
}

func TestTreeScopedNames(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/tree/@babel/core",
		"/api/tree/@babel%2Fcore",
		"/api/tree/@babel/core/v/%5E7.0.0",
		"/api/tree/@babel%2Fcore/v/7.24.0",
	} {
		t.Run(path, func(t *testing.T) {
			rec := env.get(t, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[treeResponse](t, rec)
			require.Equal(t, "@babel/core", resp.Package)
			require.Equal(t, "7.24.0", resp.Version)
		})
	}
}

func TestTreeNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		code errors.Code
	}{
		{"/api/tree/missing", errors.ErrCodePackageNotFound},
		{"/api/tree/app/v/%5E9.0.0", errors.ErrCodePackageNotFound},
		{"/api/tree/bad..name", errors.ErrCodeInvalidPackage},
		{"/api/tree/%20spaced", errors.ErrCodeInvalidPackage},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.get(t, tt.path, nil)
			require.Equal(t, http.StatusNotFound, rec.Code)

			body := decode[errorBody](t, rec)
			require.Equal(t, string(tt.code), body.Error)
			require.NotEmpty(t, body.Message)
		})
	}
}

func TestTreeCached(t *testing.T) {
	env := newTestEnv(t)

	first := env.get(t, "/api/tree/app", nil)
	require.Equal(t, http.StatusOK, first.Code)
	calls := env.calls.Load()
	require.Equal(t, 1, env.cache.Len())

	second := env.get(t, "/api/tree/app", nil)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, calls, env.calls.Load(), "cached response should not resolve again")
	require.Equal(t, first.Body.String(), second.Body.String())

	// depth is part of the cache key
	env.get(t, "/api/tree/app?depth=true", nil)
	require.Equal(t, 2, env.cache.Len())
}

func TestTreeETag(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/tree/app", nil)
	etag := rec.Header().Get("ETag")
	require.Regexp(t, `^"[0-9a-f]{16}"$`, etag)
	require.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = env.get(t, "/api/tree/app", http.Header{"If-None-Match": {etag}})
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = env.get(t, "/api/tree/app", http.Header{"If-None-Match": {`"0000000000000000"`}})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTreeCancelledRequestDoesNotFailOthers(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int64
	fetcher := deps.FetcherFunc(func(ctx context.Context, name string) *deps.Packument {
		calls.Add(1)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil
		}
		return newPackument(name, "1.0.0", nil)
	})
	srv := New(Options{
		Fetcher:  fetcher,
		Resolver: deps.NewResolver(fetcher, deps.Config{}),
		Cache:    cache.NewMemoryCache(),
	})

	serve := func(ctx context.Context) <-chan *httptest.ResponseRecorder {
		done := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/api/tree/app", nil).WithContext(ctx)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			done <- rec
		}()
		return done
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := serve(ctx)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	second := serve(context.Background())
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.Equal(t, http.StatusGatewayTimeout, (<-first).Code)

	close(gate)
	rec := <-second
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1.0.0", decode[treeResponse](t, rec).Version)
}

func TestPackument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/packument/@babel%2Fcore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pk := decode[deps.Packument](t, rec)
	require.Equal(t, "@babel/core", pk.Name)
	require.Equal(t, []string{"7.24.0"}, pk.VersionList())

	rec = env.get(t, "/api/packument/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, string(errors.ErrCodePackageNotFound), decode[errorBody](t, rec).Error)
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Regexp(t, `^[0-9a-f-]{36}$`, rec.Header().Get("X-Request-Id"))

	rec = env.get(t, "/healthz", http.Header{"X-Request-Id": {"abc"}})
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))

	rec = env.get(t, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseTreePath(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
		wantRng  string
		wantErr  bool
	}{
		{"react", "react", "latest", false},
		{"react/", "react", "latest", false},
		{"react/v/^18.0.0", "react", "^18.0.0", false},
		{"@types/node/v/20.x", "@types/node", "20.x", false},
		{"@types%2Fnode", "@types/node", "latest", false},
		{"@foo/v/v/1.0.0", "@foo/v", "1.0.0", false},
		{"@foo/v", "@foo/v", "latest", false},
		{"v/v/1.0.0", "v", "1.0.0", false},
		{"react/v/", "react", "latest", false},
		{"react/v/%3E%3D1%20%3C2", "react", ">=1 <2", false},
		{"", "", "", true},
		{"%zz", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, rng, err := parseTreePath(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantName, name)
			require.Equal(t, tt.wantRng, rng)
		})
	}
}

func TestETagMatches(t *testing.T) {
	etag := `"abc"`
	require.True(t, etagMatches(`"abc"`, etag))
	require.True(t, etagMatches(`W/"abc"`, etag))
	require.True(t, etagMatches(`"x", "abc"`, etag))
	require.True(t, etagMatches(`*`, etag))
	require.False(t, etagMatches(`"abd"`, etag))
}
