package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appointment-checker/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	rootCmd := &cobra.Command{
		Use:          "appointment-checker",
		Short:        "Check a booking site for open appointments and send an email when one appears",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "optional YAML config file; environment variables override it")
	rootCmd.Flags().BoolVar(&opts.Continuous, "continuous", false, "keep checking on the configured interval or cron schedule")

	testEmailCmd := &cobra.Command{
		Use:   "test-email",
		Short: "Send a test notification with the configured SMTP settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.SendTestEmail(cmd.Context(), opts.ConfigPath, cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(testEmailCmd)

	return rootCmd
}
