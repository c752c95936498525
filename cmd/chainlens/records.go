package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/chainlens/internal/cli"
	"github.com/aretw0/chainlens/internal/presentation/tui"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	Aliases: []string{"rec"},
	Short:   "Browse stored records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		appID, _ := cmd.Flags().GetString("app")
		if all, _ := cmd.Flags().GetBool("all"); !all && appID == "" {
			appID = cfg.AppID
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.ListRecords(cmd.Context(), cmd.OutOrStdout(), store, appID, asJSON)
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record as markdown, JSON or a Mermaid call graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		format, _ := cmd.Flags().GetString("format")
		var render func(string) (string, error)
		if raw, _ := cmd.Flags().GetBool("raw"); !raw {
			style, _ := cmd.Flags().GetString("style")
			render = tui.RendererFor(style)
		}
		return cli.ShowRecord(cmd.Context(), cmd.OutOrStdout(), store, args[0], format, render)
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>...",
	Short: "Delete records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return cli.DeleteRecords(cmd.Context(), cmd.OutOrStdout(), store, args...)
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsDeleteCmd)

	recordsListCmd.Flags().String("app", "", "Only list records of this app (defaults to the configured app)")
	recordsListCmd.Flags().Bool("all", false, "List the records of every app")
	recordsListCmd.Flags().Bool("json", false, "Print the record IDs as JSON")

	recordsShowCmd.Flags().StringP("format", "f", cli.FormatMarkdown, "Output format: markdown, json or mermaid")
	recordsShowCmd.Flags().Bool("raw", false, "Print markdown without terminal styling")
	recordsShowCmd.Flags().String("style", "", "Glamour style for markdown (dark, light, notty, ...); auto-detected when empty")
}
