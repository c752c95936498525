package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/chainlens"
	"github.com/aretw0/chainlens/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the record store as a JSON API over HTTP, with Server-Sent Events
for records as they complete and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		every, _ := cmd.Flags().GetDuration("demo-every")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Serve(ctx, cmd.OutOrStdout(), store, cli.ServeOptions{
			Addr:      addr,
			Version:   chainlens.Version,
			Metrics:   cfg.Server.Metrics,
			Logger:    logger,
			DemoEvery: every,
			DemoAppID: cfg.AppID,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Duration("demo-every", 0, "Run the sample chain on this interval (0 disables)")
}
