package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/service/packager"
	"github.com/nowm/servelat-build/internal/service/watcher"
)

// watchCmd rebuilds the package whenever sources change.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the package on every source change",
	Long: `Runs a full build, then watches the entry point directories, package.json,
README.md, LICENSE and the settings file, and runs a full clean build again
after each change. Build errors are reported and watching continues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		options := &packager.Options{
			ConfigPath: configPath,
		}

		return watcher.Run(cmd.Context(), &watcher.Options{
			Paths:  watchedPaths(cfg),
			Ignore: ignoredPaths(cfg),
			Build: func(ctx context.Context) error {
				return packager.Run(ctx, options)
			},
		})
	},
}

// watchedPaths lists the inputs of a build.
func watchedPaths(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	paths := make([]string, 0, len(cfg.EntryPoints)+4)

	appendPath := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}

		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, entry := range cfg.EntryPaths() {
		appendPath(filepath.Dir(entry))
	}

	appendPath(cfg.Path(cfg.Manifest))
	appendPath(cfg.Path(cfg.Readme))
	appendPath(cfg.Path(cfg.LicenseFile))

	settings := configPath
	if settings == "" {
		settings = config.DefaultConfigFilename
	}

	if _, err := os.Stat(settings); err == nil {
		appendPath(settings)
	}

	return paths
}

// ignoredPaths lists what a build writes itself: the output directory and the build lock.
func ignoredPaths(cfg *config.Config) []string {
	return []string{cfg.OutPath(), cfg.Path(packager.LockFilename)}
}
