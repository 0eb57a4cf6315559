// ABOUTME: Long-running server subcommands
// ABOUTME: serve exposes the JSON API over HTTP, mcp exposes tools over stdio
package cli

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/handlers"
	"github.com/harperreed/outreach/web"
)

func newServeCmd(app *App) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.watchLearning(ctx); err != nil {
				return err
			}
			if port == 0 {
				port = app.cfg.Port
			}

			rdb, err := app.redisClient()
			if err != nil {
				return err
			}

			opts := web.Options{
				Store:       app.store,
				APIKey:      app.cfg.APIKey,
				CORSOrigins: app.cfg.CORSOrigins,
				RateLimit:   app.cfg.RateLimit,
				Redis:       rdb,
				OTelEnabled: app.cfg.OTelEnabled,
				Logger:      app.logger,
			}
			if runner, err := app.syncRunner(ctx); err != nil {
				app.logger.Warn("sync disabled", zap.Error(err))
			} else {
				opts.Syncer = runner
			}
			if app.cfg.APIKey == "" {
				app.logger.Warn("API_KEY is not set, the API is unauthenticated")
			}

			srv, err := web.NewServer(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: PORT or 8080)")
	return cmd
}

func newMCPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.watchLearning(ctx); err != nil {
				return err
			}

			var syncer handlers.Syncer
			if runner, err := app.syncRunner(ctx); err != nil {
				app.logger.Warn("sync disabled", zap.Error(err))
			} else {
				syncer = runner
			}

			server := handlers.NewServer(app.store, syncer, app.Version)
			app.logger.Info("starting MCP server on stdio")
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("mcp server failed: %w", err)
			}
			return nil
		},
	}
}
