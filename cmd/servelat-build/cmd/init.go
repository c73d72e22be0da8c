package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/logger"
)

var errSettingsExist = errors.New("settings file already exists")

// initCmd writes the default settings so they can be edited.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default build settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigFilename
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", errSettingsExist, path)
		}

		if err := config.Save(path, config.Default()); err != nil {
			return err
		}

		logger.InfoKV(cmd.Context(), "Wrote default settings", "path", path)

		return nil
	},
}
