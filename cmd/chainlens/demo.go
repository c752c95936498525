package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/chainlens"
	"github.com/aretw0/chainlens/internal/cli"
	"github.com/aretw0/chainlens/internal/presentation/tui"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/observability"
)

var demoCmd = &cobra.Command{
	Use:   "demo [question]",
	Short: "Run an instrumented sample chain and show its record",
	Long: `Runs a small question answering chain (a normalizer followed by a
streamed answer and a summary computed in parallel) under instrumentation,
stores the resulting record and prints it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		question := "What does chainlens record?"
		if len(args) > 0 {
			question = args[0]
		}

		out := cmd.OutOrStdout()
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(out, chainlens.Version)
		}

		app, err := cli.NewDemoApp(cli.DemoOptions{
			AppID:  cfg.AppID,
			Store:  store,
			Hooks:  []domain.Hooks{observability.LogHooks(logger)},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rec, err := cli.RunDemo(ctx, out, app, question)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		style, _ := cmd.Flags().GetString("style")
		return cli.ShowRecord(ctx, out, store, rec.RecordID, format, tui.RendererFor(style))
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringP("format", "f", cli.FormatMarkdown, "Output format: markdown, json or mermaid")
	demoCmd.Flags().BoolP("quiet", "q", false, "Skip the banner")
	demoCmd.Flags().String("style", "", "Glamour style for markdown (dark, light, notty, ...); auto-detected when empty")
}
