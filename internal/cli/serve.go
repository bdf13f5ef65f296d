package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dependency trees over HTTP",
		Long: `Serve dependency trees over HTTP.

Routes:
  GET /api/tree/{package}[/v/{range}]?depth=true
  GET /api/packument/{package}
  GET /healthz

The cache backend, registry and platform come from the config file and
DEPTREE_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cc, err := c.cfg.Cache.OpenCache(ctx)
			if err != nil {
				return err
			}
			defer cc.Close()

			store := c.newStore(cc, false)
			defer store.Wait()

			srv := server.New(server.Options{
				Fetcher:  store,
				Resolver: c.newResolver(store, c.cfg.TargetPlatform(), c.cfg.Resolve.Concurrency),
				Cache:    cc,
				Keyer:    c.cfg.Keyer(),
				MaxAge:   c.cfg.Cache.MaxAge,
				MaxDepth: c.cfg.Resolve.MaxDepth,
				Registry: c.cfg.Registry.URL,
				Logger:   logger,
			})

			logger.Info("serving", "registry", c.cfg.Registry.URL, "cache", c.cfg.Cache.Backend, "platform", c.cfg.TargetPlatform())
			return srv.Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
