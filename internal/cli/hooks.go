package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deptree/pkg/observability"
)

// logHooks writes observability events to a logger at debug level.
type logHooks struct {
	l *log.Logger
}

func (h *logHooks) OnResolveStart(_ context.Context, id, name, rng string) {
	h.l.Debug("resolve start", "resolution", id, "package", name, "range", rng)
}

func (h *logHooks) OnLevelComplete(_ context.Context, id string, level, items, resolved int, d time.Duration) {
	h.l.Debug("level", "resolution", id, "level", level, "items", items, "resolved", resolved, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnResolveComplete(_ context.Context, id, name string, packages int, d time.Duration, err error) {
	if err != nil {
		h.l.Debug("resolve failed", "resolution", id, "package", name, "err", err)
		return
	}
	h.l.Debug("resolve done", "resolution", id, "package", name, "packages", packages, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string)   { h.l.Debug("cache hit", "type", keyType) }
func (h *logHooks) OnCacheStale(_ context.Context, keyType string) { h.l.Debug("cache stale", "type", keyType) }
func (h *logHooks) OnCacheMiss(_ context.Context, keyType string)  { h.l.Debug("cache miss", "type", keyType) }

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.l.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.l.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.l.Debug("http response", "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.l.Debug("http error", "host", host, "path", path, "err", err)
}

// spinnerHooks reports resolution progress on a spinner.
type spinnerHooks struct {
	observability.NoopResolveHooks

	spinner *Spinner
	name    string

	mu       sync.Mutex
	resolved int
}

func (h *spinnerHooks) OnLevelComplete(_ context.Context, _ string, level, _, resolved int, _ time.Duration) {
	h.mu.Lock()
	h.resolved += resolved
	total := h.resolved
	h.mu.Unlock()
	h.spinner.SetMessage(fmt.Sprintf("Resolving %s · level %d · %d packages", h.name, level+1, total))
}

var (
	_ observability.ResolveHooks = (*logHooks)(nil)
	_ observability.CacheHooks   = (*logHooks)(nil)
	_ observability.HTTPHooks    = (*logHooks)(nil)
	_ observability.ResolveHooks = (*spinnerHooks)(nil)
)
