package deps

import (
	"context"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/observability"
)

// DefaultConcurrency bounds in-flight packument fetches within one level.
const DefaultConcurrency = 20

// Fetcher retrieves packuments by name. A nil result means the package is
// unavailable for whatever reason; resolution drops it and moves on.
type Fetcher interface {
	Fetch(ctx context.Context, name string) *Packument
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, name string) *Packument

func (f FetcherFunc) Fetch(ctx context.Context, name string) *Packument { return f(ctx, name) }

// Config configures a [Resolver]. The zero value is usable.
type Config struct {
	Platform    Platform    // Install target (default: linux/x64/glibc)
	Concurrency int         // Parallel fetches per level (default: 20)
	Logger      *log.Logger // Debug output for dropped packages (default: discard)
}

// WithDefaults returns a copy of Config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	cfg := c
	if cfg.Platform.IsZero() {
		cfg.Platform = DefaultPlatform()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return cfg
}

// Options controls a single resolution.
type Options struct {
	TrackDepth bool // Record Depth and Path on each package
	MaxDepth   int  // Stop expanding after this level (0 = unlimited)
}

// Resolver walks dependency trees for one fixed platform. It is safe for
// concurrent use; each call to Resolve keeps its own state.
type Resolver struct {
	fetcher Fetcher
	cfg     Config
}

// NewResolver creates a Resolver reading packuments from fetcher.
func NewResolver(fetcher Fetcher, cfg Config) *Resolver {
	return &Resolver{fetcher: fetcher, cfg: cfg.WithDefaults()}
}

// Platform returns the platform trees are resolved for.
func (r *Resolver) Platform() Platform { return r.cfg.Platform }

// Resolve walks the dependency tree of name at rng breadth first.
//
// Missing packages, unsatisfiable ranges, non-registry specs and packages
// built for other platforms are left out of the tree together with their
// dependencies; none of them is an error. The only errors are an invalid
// root name and cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, name, rng string, opts Options) (Tree, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}

	w := &walk{
		Resolver: r,
		opts:     opts,
		id:       uuid.NewString(),
		tree:     make(Tree),
		seen:     make(map[string]bool),
	}
	w.logger = r.cfg.Logger.With("resolution", w.id)

	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, w.id, name, rng)
	start := time.Now()

	err := w.run(ctx, item{name: name, rng: rng, root: true})
	hooks.OnResolveComplete(ctx, w.id, name, len(w.tree), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return w.tree, nil
}

// item is one pending dependency edge.
type item struct {
	name     string
	rng      string
	optional bool
	root     bool
	path     []string // resolved ancestors, root first
}

// outcome is what a worker learned about one item. A nil outcome means the
// item was dropped.
type outcome struct {
	version string
	data    *PackumentVersion
}

type walk struct {
	*Resolver
	opts   Options
	id     string
	logger *log.Logger

	tree Tree
	seen map[string]bool
}

func (w *walk) run(ctx context.Context, root item) error {
	level := map[string]item{root.name: root}

	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()

		names := slices.Sorted(maps.Keys(level))
		for _, n := range names {
			w.seen[n] = true
		}

		items := make([]item, len(names))
		for i, n := range names {
			items[i] = level[n]
		}
		outcomes := w.process(ctx, items)
		if err := ctx.Err(); err != nil {
			return err
		}

		next := make(map[string]item)
		expand := w.opts.MaxDepth <= 0 || depth < w.opts.MaxDepth
		resolved := 0
		for i, it := range items {
			o := outcomes[i]
			if o == nil {
				continue
			}
			if w.record(it, o, depth) {
				resolved++
			}
			if expand {
				w.stage(next, it, o)
			}
		}

		w.logger.Debug("level complete", "level", depth, "items", len(items), "resolved", resolved, "next", len(next))
		observability.Resolve().OnLevelComplete(ctx, w.id, depth, len(items), resolved, time.Since(start))
		level = next
	}
	return nil
}

// process runs fetch, version resolution and the platform check for every
// item of a level. Each worker writes only its own outcome slot.
func (w *walk) process(ctx context.Context, items []item) []*outcome {
	outcomes := make([]*outcome, len(items))

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = w.evaluate(ctx, it)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (w *walk) evaluate(ctx context.Context, it item) *outcome {
	pk := w.fetcher.Fetch(ctx, it.name)
	if pk == nil {
		w.logger.Debug("package unavailable", "name", it.name)
		return nil
	}

	version, ok := pickVersion(pk, it.rng, it.root)
	if !ok {
		w.logger.Debug("no matching version", "name", it.name, "range", it.rng)
		return nil
	}
	data := pk.Versions[version]
	if data == nil {
		return nil
	}

	if !w.cfg.Platform.Matches(data) {
		w.logger.Debug("platform mismatch", "name", it.name, "version", version, "platform", w.cfg.Platform)
		return nil
	}
	return &outcome{version: version, data: data}
}

// pickVersion resolves rng against pk. Dist-tags are honoured for the root
// only; a dependency declared by tag is not a range and is dropped.
func pickVersion(pk *Packument, rng string, root bool) (string, bool) {
	if v, ok := pk.DistTags[rng]; ok && root {
		if _, exists := pk.Versions[v]; exists {
			return v, true
		}
	}
	return ResolveVersion(rng, pk.VersionList())
}

// record inserts the resolved package unless its key is already present.
func (w *walk) record(it item, o *outcome, depth int) bool {
	key := Key(it.name, o.version)
	if _, ok := w.tree[key]; ok {
		return false
	}
	pkg := &ResolvedPackage{
		Name:       it.name,
		Version:    o.version,
		Size:       o.data.Dist.UnpackedSize,
		Optional:   it.optional,
		Deprecated: o.data.Deprecated,
	}
	if w.opts.TrackDepth {
		pkg.Depth = depthForLevel(depth)
		pkg.Path = append(slices.Clone(it.path), key)
	}
	w.tree[key] = pkg
	return true
}

// stage adds the dependencies of a resolved item to the next level, required
// before optional, skipping names already seen or staged.
func (w *walk) stage(next map[string]item, it item, o *outcome) {
	path := append(slices.Clone(it.path), Key(it.name, o.version))

	add := func(deps map[string]string, optional bool) {
		for _, name := range slices.Sorted(maps.Keys(deps)) {
			if w.seen[name] {
				continue
			}
			if _, staged := next[name]; staged {
				continue
			}
			next[name] = item{name: name, rng: deps[name], optional: optional, path: path}
		}
	}
	add(o.data.Dependencies, false)
	add(o.data.OptionalDependencies, true)
}
