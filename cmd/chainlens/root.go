package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/chainlens/internal/cli"
	"github.com/aretw0/chainlens/internal/config"
	"github.com/aretw0/chainlens/pkg/ports"
)

var rootCmd = &cobra.Command{
	Use:   "chainlens",
	Short: "chainlens records and inspects the calls made inside chain apps",
	Long: `chainlens instruments chain apps, stores one record per root invocation
and lets you browse those records from the terminal, over HTTP or through MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "", "Record store driver: memory, file, redis, sqlite or pebble")
	rootCmd.PersistentFlags().String("path", "", "Store path (file, sqlite and pebble drivers)")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Driver = v
	}
	if v, _ := cmd.Flags().GetString("path"); v != "" {
		cfg.Store.Path = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore loads the config and opens the store it names.
func openStore(cmd *cobra.Command) (*config.Config, *slog.Logger, ports.RecordStore, func() error, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store, closeFn, err := cli.OpenStore(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, logger, store, closeFn, nil
}
