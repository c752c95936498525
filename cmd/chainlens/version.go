package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/chainlens"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chainlens",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chainlens version %s\n", strings.TrimSpace(chainlens.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
