package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/ghd/internal/service/status"
)

// statusCmd prints the outcome of the latest sync of every package.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest sync outcome of every package",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		return status.Run(ctx, &status.Options{
			ConfigPath: configPath,
			LogLevel:   logLevel,
			Out:        cmd.OutOrStdout(),
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
