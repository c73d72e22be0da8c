package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nowm/servelat-build/internal/logger"
	"github.com/nowm/servelat-build/internal/service/packager"
	"github.com/nowm/servelat-build/internal/version"
)

var (
	// configPath to the build settings YAML file.
	configPath string
	// logLevel is the minimum level of printed messages.
	logLevel string

	// rootCmd builds the distribution directory once.
	rootCmd = &cobra.Command{
		Use:   "servelat-build",
		Short: "Bundle the library and assemble the publishable package",
		Long: `Cleans the output directory, bundles the entry point as ESM and CommonJS,
generates type declarations, stamps the license header on every artifact and
writes README.md, LICENSE and package.json next to them.

Set NODE_ENV=development to skip minification.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: applyLogLevel,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return packager.Run(cmd.Context(), &packager.Options{
				ConfigPath: configPath,
			})
		},
	}
)

// Execute runs the servelat-build CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(watchCmd, initCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		logger.ErrorKV(ctx, "Build failed", "error", err)

		//nolint:errcheck // Nothing left to do if flushing fails.
		logger.Logger().Sync()

		os.Exit(1)
	}
}

// applyLogLevel parses --log-level before any command runs.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to build settings (default servelat-build.yaml if present)")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
}
