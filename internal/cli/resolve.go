package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/manifest"
	"github.com/matzehuels/deptree/pkg/observability"
	"github.com/matzehuels/deptree/pkg/render"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

type resolveOptions struct {
	depth       bool
	dev         bool
	format      string
	output      string
	noCache     bool
	refresh     bool
	concurrency int
	maxDepth    int
	platform    string
	interactive bool
}

// treeOutput is the JSON document written by --format json. It has the
// same shape as the HTTP API response.
type treeOutput struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Count     int       `json:"count"`
	TotalSize int64     `json:"totalSize"`
	Packages  deps.Tree `json:"packages"`
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve <package[@range] | path/to/package.json> [range]",
		Short: "Resolve the dependency tree of an npm package",
		Long: `Resolve the dependency tree of an npm package for a target platform.

The range defaults to the "latest" dist-tag. Packages that cannot be
installed on the target platform are left out together with their
dependencies.

Instead of a package name, a local package.json (or a directory such as
"." holding one) can be given to resolve a project before publishing it.`,
		Example: `  deptree resolve react
  deptree resolve @babel/core@^7 --depth
  deptree resolve esbuild latest --platform darwin/arm64
  deptree resolve express --format svg -o express.svg
  deptree resolve ./package.json --dev`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-depth") && opts.maxDepth < 0 {
				return errors.New(errors.ErrCodeInvalidInput, "--max-depth cannot be negative")
			}
			if !cmd.Flags().Changed("max-depth") {
				opts.maxDepth = c.cfg.Resolve.MaxDepth
			}
			if opts.concurrency <= 0 {
				opts.concurrency = c.cfg.Resolve.Concurrency
			}
			return c.runResolve(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.depth, "depth", false, "record depth and discovery path of each package")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "include devDependencies when resolving a package.json")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format: text, json, dot, svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the packument cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached packuments and refetch them")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "parallel registry requests (default from config)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "stop expanding below this level (0 = unlimited)")
	cmd.Flags().StringVar(&opts.platform, "platform", "", "target platform as os/cpu/libc (default from config)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the result interactively")

	cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{formatText, formatJSON, formatDOT, formatSVG}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, args []string, opts resolveOptions) error {
	tgt, err := parseTarget(args, opts.dev)
	if err != nil {
		return err
	}
	name, rng := tgt.name, tgt.rng

	switch opts.format {
	case formatText, formatJSON, formatDOT, formatSVG:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want text, json, dot or svg)", opts.format)
	}
	if opts.interactive && opts.format != formatText {
		return errors.New(errors.ErrCodeInvalidInput, "--interactive only works with --format text")
	}

	platform := c.cfg.TargetPlatform()
	if opts.platform != "" {
		platform = deps.ParsePlatform(opts.platform)
	}

	cc, err := c.openCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	store := c.newStore(cc, opts.refresh)
	var fetcher deps.Fetcher = store
	if tgt.project != nil {
		fetcher = manifest.Fetcher(tgt.project, store)
	}
	resolver := c.newResolver(fetcher, platform, opts.concurrency)

	logger := loggerFromContext(ctx)
	logger.Debug("resolving", "package", name, "range", rng, "platform", platform, "concurrency", opts.concurrency)

	tree, err := c.resolveWithProgress(ctx, resolver, name, rng, opts.maxDepth)
	store.Wait()
	if err != nil {
		return err
	}

	root, ok := tree.Root()
	if !ok {
		return errors.New(errors.ErrCodePackageNotFound, "no version of %s matching %q installs on %s", name, rng, platform)
	}

	// Depth is always tracked so the root is known; drop it unless asked.
	if !opts.depth && (opts.format == formatText || opts.format == formatJSON) {
		tree = tree.WithoutDepth()
	}

	if opts.interactive {
		return browseTree(fmt.Sprintf("%s · %d packages", root.Key(), len(tree)), tree)
	}

	data, err := c.encodeTree(ctx, tree, root, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.output != "":
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		printSuccess(c.Stdout, "Resolved %s (%d packages)", root.Key(), len(tree))
		printFile(c.Stdout, opts.output)
		return nil
	default:
		_, err := c.Stdout.Write(data)
		return err
	}
}

// target is the root of a resolution. project is set when the root is a
// local package.json rather than a registry package.
type target struct {
	name    string
	rng     string
	project *deps.Packument
}

// parseTarget interprets the positional arguments of resolve. A path to a
// package.json (or to a directory holding one) selects the local project.
func parseTarget(args []string, dev bool) (target, error) {
	if path, ok := manifestPath(args[0]); ok {
		if len(args) == 2 {
			return target{}, errors.New(errors.ErrCodeInvalidInput, "a range cannot be combined with a manifest")
		}
		pj, err := manifest.Parse(path)
		if err != nil {
			return target{}, err
		}
		return target{
			name:    pj.RootName(),
			rng:     pj.RootVersion(),
			project: pj.Packument(manifest.Options{Dev: dev}),
		}, nil
	}

	name, rng, err := deps.ParseSpec(args[0])
	if err != nil {
		return target{}, err
	}
	if len(args) == 2 {
		rng = args[1]
	}
	if rng == "" {
		rng = defaultRange
	}
	if err := errors.ValidateRange(rng); err != nil {
		return target{}, err
	}
	return target{name: name, rng: rng}, nil
}

// manifestPath reports whether arg names a local manifest rather than a
// registry package. Bare words are always package names, even if a
// directory of that name exists.
func manifestPath(arg string) (string, bool) {
	if filepath.Base(arg) == manifest.FileName {
		return arg, true
	}
	local := arg == "." || arg == ".." || filepath.IsAbs(arg) ||
		strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../")
	if !local {
		return "", false
	}
	return filepath.Join(arg, manifest.FileName), true
}

// resolveWithProgress runs the resolver with a spinner on stderr, unless
// debug logging is on, in which case the log already reports progress.
func (c *CLI) resolveWithProgress(ctx context.Context, r *deps.Resolver, name, rng string, maxDepth int) (deps.Tree, error) {
	opts := deps.Options{TrackDepth: true, MaxDepth: maxDepth}
	prog := newProgress(loggerFromContext(ctx))

	stop := func() {}
	if !c.debug() {
		spinner := newSpinner(ctx, fmt.Sprintf("Resolving %s@%s", name, rng))
		observability.SetResolveHooks(&spinnerHooks{spinner: spinner, name: name})
		defer observability.SetResolveHooks(observability.NoopResolveHooks{})

		spinner.Start()
		stop = spinner.Stop
	}

	tree, err := r.Resolve(ctx, name, rng, opts)
	stop()
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Resolved %d packages", len(tree)))
	return tree, nil
}

// encodeTree renders the tree in the requested format.
func (c *CLI) encodeTree(ctx context.Context, tree deps.Tree, root *deps.ResolvedPackage, opts resolveOptions) ([]byte, error) {
	switch opts.format {
	case formatJSON:
		data, err := json.MarshalIndent(treeOutput{
			Package:   root.Name,
			Version:   root.Version,
			Count:     len(tree),
			TotalSize: tree.TotalSize(),
			Packages:  tree,
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatDOT:
		return []byte(render.ToDOT(tree, render.Options{Detailed: opts.depth})), nil
	case formatSVG:
		return render.RenderSVG(ctx, render.ToDOT(tree, render.Options{Detailed: opts.depth}))
	default:
		return textTree(tree, opts.depth), nil
	}
}

func textTree(tree deps.Tree, showDepth bool) []byte {
	var buf bytes.Buffer
	printTree(&buf, tree, showDepth)
	return buf.Bytes()
}
