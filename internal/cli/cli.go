package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/buildinfo"
	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/config"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/integrations/npm"
	"github.com/matzehuels/deptree/pkg/observability"
	"github.com/matzehuels/deptree/pkg/packument"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "deptree"

	// defaultRange is used when no range is given for the root package.
	defaultRange = "latest"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Stdout io.Writer

	configPath string
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Stdout: os.Stdout,
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level. At debug level, cache, HTTP and
// resolution events are logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installDebugHooks(c.Logger)
	}
}

func (c *CLI) debug() bool {
	return c.Logger.GetLevel() <= log.DebugLevel
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "deptree resolves npm dependency trees",
		Long:         `deptree resolves the full dependency tree of an npm package straight from the registry, for a chosen target platform, without installing anything.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/deptree/config.toml)")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Resolver Factory
// =============================================================================

// openCache opens the configured cache backend. The in-memory backend would
// be empty on every invocation, so the CLI stores on disk instead.
func (c *CLI) openCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cc := c.cfg.Cache
	if cc.Backend == config.BackendMemory {
		cc.Backend = config.BackendFile
	}
	return cc.OpenCache(ctx)
}

// newStore builds the packument store in front of the configured registry.
func (c *CLI) newStore(cc cache.Cache, refresh bool) *packument.Store {
	client := npm.NewClient(c.cfg.Registry.URL, c.cfg.ClientOptions())
	return packument.NewStore(client, cc, packument.Options{
		MaxAge:   c.cfg.Cache.MaxAge,
		StaleTTL: c.cfg.Cache.StaleTTL,
		Refresh:  refresh,
		Keyer:    c.cfg.Keyer(),
		Logger:   c.Logger,
	})
}

// newResolver builds a resolver reading packuments from fetcher.
func (c *CLI) newResolver(fetcher deps.Fetcher, platform deps.Platform, concurrency int) *deps.Resolver {
	return deps.NewResolver(fetcher, deps.Config{
		Platform:    platform,
		Concurrency: concurrency,
		Logger:      c.Logger,
	})
}

// installDebugHooks logs every observability event at debug level.
func installDebugHooks(l *log.Logger) {
	h := &logHooks{l: l}
	observability.SetResolveHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}
