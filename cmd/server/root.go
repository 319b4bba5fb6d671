package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sorter/internal/app"
	"sorter/internal/config"
)

var (
	// cfg is loaded once for every subcommand.
	cfg     *config.Config
	envFile string
	port    int
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "sorter",
	Short:   "Sorting station server: reads labels from camera frames and drives the sorting servos",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			os.Setenv("ENV_FILE", envFile)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return application.Run(cmd.Context())
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env)")
	rootCmd.Flags().IntVar(&port, "port", 5000, "HTTP port, overrides PORT")
}
