package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/ghd/internal/service/syncer"
)

// syncCmd downloads and installs the latest release of every configured package.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install the latest release of every configured package",
	Long: "Fetch the latest release of every configured repository, download the asset " +
		"matching the package suffix, extract it and copy top-level executables into the install directory.",
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		return syncer.Run(ctx, &syncer.Options{
			ConfigPath: configPath,
			LogLevel:   logLevel,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(syncCmd)
}
