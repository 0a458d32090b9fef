package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/service"
)

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerCfg.ListenAddr = addr
			}
			logger := observability.GetLogger()

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			// Run returns once ctx is cancelled by SIGINT or SIGTERM.
			return components.Server().Run(ctx)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen_addr)")
	return serveCmd
}
