package main

import (
	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/dashboard"
	"github.com/nikivdev/flow/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP view of runs and snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Serve.Port = port
			}
			gdb, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog(gdb)

			ctx, cancel := signalContext()
			defer cancel()
			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:     gdb,
				Root:   cfg.Output.Root,
				Port:   cfg.Serve.Port,
				Out:    cmd.OutOrStdout(),
				Logger: logging.Named("dashboard"),
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	return cmd
}
