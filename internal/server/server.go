// Package server exposes dependency resolution over HTTP.
//
// Routes:
//
//	GET /healthz                              liveness probe
//	GET /api/tree/{name}[/v/{range}]          resolved tree, ?depth=true adds depth and path
//	GET /api/packument/{name}                 cached registry document
//
// Scoped names are accepted either literally (/api/tree/@babel/core) or
// escaped (/api/tree/@babel%2Fcore). A missing range means "latest".
//
// Encoded tree responses are cached under [cache.Keyer.TreeKey] for
// MaxAge and carry an xxhash ETag, so repeated requests are answered
// without walking the tree again.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/packument"
)

const shutdownTimeout = 10 * time.Second

// Options configures a [Server].
type Options struct {
	Fetcher  deps.Fetcher   // Packument source for /api/packument (required)
	Resolver *deps.Resolver // Tree resolver for /api/tree (required)
	Cache    cache.Cache    // Response cache (default: none)
	Keyer    cache.Keyer    // Cache key layout (default: cache.DefaultKeyer)
	MaxAge   time.Duration  // Response cache lifetime and Cache-Control max-age (default: 1h)
	MaxDepth int            // Expansion limit applied to every request (0 = unlimited)
	Registry string         // Registry URL, part of the tree cache key
	Logger   *log.Logger    // Request log (default: discard)
}

// Server wraps the router and the underlying http.Server.
type Server struct {
	l    *log.Logger
	r    chi.Router
	n    *http.Server
	opts Options

	group singleflight.Group
}

// New creates a Server with all routes mounted.
func New(opts Options) *Server {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = packument.DefaultMaxAge
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	s := &Server{
		l:    opts.Logger.WithPrefix("http"),
		r:    chi.NewRouter(),
		n:    &http.Server{ReadHeaderTimeout: 10 * time.Second},
		opts: opts,
	}

	s.r.Use(requestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(s.logRequests)
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Heartbeat("/healthz"))

	s.r.Route("/api", func(r chi.Router) {
		r.Get("/tree/*", s.handleTree)
		r.Get("/packument/*", s.handlePackument)
	})
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Message: "no such route"})
	})

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.r }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.n.Addr = addr
	s.n.Handler = s.r

	errCh := make(chan error, 1)
	go func() {
		s.l.Info("listening", "addr", addr)
		errCh <- s.n.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.l.Info("shutting down")
	if err := s.n.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
