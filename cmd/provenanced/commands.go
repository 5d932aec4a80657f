package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agritrace/provenance-node/config"
	"github.com/agritrace/provenance-node/logger"
	"github.com/agritrace/provenance-node/node"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("home", defaultNodeHome(), "node home directory")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
}

func defaultNodeHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".provenanced"
	}
	return filepath.Join(home, ".provenanced")
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the provenance node",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString("home")
			if err != nil {
				return err
			}

			cfg, err := config.Load(home)
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			// Cancel the context on SIGINT/SIGTERM for a graceful shutdown.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			n, err := node.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return n.Start(ctx)
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config file to the node home",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString("home")
			if err != nil {
				return err
			}

			path, err := config.WriteDefault(home)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote default config to %s\n", path)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print provenanced version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Name:    provenanced\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Commit:  %s\n", commit)
		},
	}
}
