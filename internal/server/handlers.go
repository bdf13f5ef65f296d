package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
)

const (
	defaultRange = "latest"

	resolveTimeout = 2 * time.Minute
)

// treeResponse is the body of /api/tree.
type treeResponse struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Count     int       `json:"count"`
	TotalSize int64     `json:"totalSize"`
	Packages  deps.Tree `json:"packages"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	name, rng, err := parseTreePath(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, err)
		return
	}
	depth, _ := strconv.ParseBool(r.URL.Query().Get("depth"))

	key := s.opts.Keyer.TreeKey(name, rng, cache.TreeKeyOpts{
		TrackDepth: depth,
		MaxDepth:   s.opts.MaxDepth,
		Platform:   s.opts.Resolver.Platform(),
		Registry:   s.opts.Registry,
	})

	body, err := s.treeBody(r.Context(), key, name, rng, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCached(w, r, body)
}

// treeBody returns the encoded tree response, from the cache when present.
// Concurrent requests for the same key share one resolution, which runs
// detached from any single request and is bounded by resolveTimeout.
func (s *Server) treeBody(ctx context.Context, key, name, rng string, depth bool) ([]byte, error) {
	if data, ok, err := s.opts.Cache.Get(ctx, key); err == nil && ok {
		return data, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		resp, err := s.resolveTree(rctx, name, rng, depth)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode tree")
		}
		if err := s.opts.Cache.Set(rctx, key, data, s.opts.MaxAge); err != nil {
			s.l.Warn("cache write failed", "key", key, "err", err)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "request for %s cancelled", name)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// resolveTree always tracks depth so the root can be identified, then drops
// depth and path again unless the client asked for them.
func (s *Server) resolveTree(ctx context.Context, name, rng string, depth bool) (*treeResponse, error) {
	tree, err := s.opts.Resolver.Resolve(ctx, name, rng, deps.Options{
		TrackDepth: true,
		MaxDepth:   s.opts.MaxDepth,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "resolution of %s cancelled", name)
		}
		return nil, err
	}

	root, ok := tree.Root()
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "no installable version of %s matches %q", name, rng)
	}

	if !depth {
		tree = tree.WithoutDepth()
	}

	return &treeResponse{
		Package:   name,
		Version:   root.Version,
		Count:     len(tree),
		TotalSize: tree.TotalSize(),
		Packages:  tree,
	}, nil
}

func (s *Server) handlePackument(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(strings.Trim(chi.URLParam(r, "*"), "/"))
	if err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidPackage, "malformed package path"))
		return
	}
	if err := deps.ValidateName(name); err != nil {
		writeError(w, err)
		return
	}

	pk := s.opts.Fetcher.Fetch(r.Context(), name)
	if pk == nil {
		writeError(w, errors.New(errors.ErrCodePackageNotFound, "package %s not found", name))
		return
	}

	body, err := json.Marshal(pk)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "encode packument"))
		return
	}
	s.writeCached(w, r, body)
}

// parseTreePath splits "name[/v/range]" after unescaping. Scoped names
// contain one slash of their own, so the range marker is searched for
// after it.
func parseTreePath(raw string) (name, rng string, err error) {
	path, err := url.PathUnescape(strings.Trim(raw, "/"))
	if err != nil {
		return "", "", errors.New(errors.ErrCodeInvalidPackage, "malformed package path")
	}

	name = path
	from := 0
	if strings.HasPrefix(path, "@") {
		if slash := strings.IndexByte(path, '/'); slash >= 0 {
			from = slash + 1
		}
	}
	if i := strings.Index(path[from:], "/v/"); i >= 0 {
		name, rng = path[:from+i], path[from+i+len("/v/"):]
	}
	if rng == "" {
		rng = defaultRange
	}

	if err := deps.ValidateName(name); err != nil {
		return "", "", err
	}
	if err := errors.ValidateRange(rng); err != nil {
		return "", "", err
	}
	return name, rng, nil
}

// writeCached writes a JSON body with an ETag, answering 304 when the
// client already holds it.
func (s *Server) writeCached(w http.ResponseWriter, r *http.Request, body []byte) {
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.opts.MaxAge.Seconds())))

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.HTTPStatus(err), errorBody{
		Error:   string(code),
		Message: errors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
