package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaulting and the safety checks on the output directory.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get every default except entry points.
	settings := new(Config)
	require.ErrorIs(t, Validate(settings), errNoEntryPoints)
	require.Equal(t, defaultOutDir, settings.OutDir)
	require.Equal(t, defaultBaselineYear, settings.BaselineYear)

	// Defaults are valid.
	require.NoError(t, Validate(Default()))

	// Output directory equal to the root.
	settings = Default()
	settings.OutDir = "."
	require.ErrorIs(t, Validate(settings), errUnsafeOutDir)

	// Output directory above the root.
	settings = Default()
	settings.Root = "project"
	settings.OutDir = ".."
	require.ErrorIs(t, Validate(settings), errUnsafeOutDir)

	// Entry point inside the output directory.
	settings = Default()
	settings.EntryPoints = []string{"./dist/index.ts"}
	require.ErrorIs(t, Validate(settings), errUnsafeOutDir)

	// Sibling directory with a common prefix is fine.
	settings = Default()
	settings.OutDir = "./src-dist"
	require.NoError(t, Validate(settings))

	settings = Default()
	settings.Platform = "deno"
	require.ErrorIs(t, Validate(settings), errUnknownPlatform)

	settings = Default()
	settings.BaselineYear = -1
	require.ErrorIs(t, Validate(settings), errBadBaselineYear)

	settings = Default()
	settings.Declarations.Command = []string{}
	require.ErrorIs(t, Validate(settings), errNoDeclarationCommand)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestLoadMissingDefaultFile ensures an absent default file yields defaults and an absent explicit file fails.
func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load("missing.yaml")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back with the root resolved.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")

	settings := Default()
	settings.Product = "widget"
	settings.BaselineYear = 2023
	settings.EntryPoints = []string{"./lib/main.ts"}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "widget", loaded.Product)
	require.Equal(t, 2023, loaded.BaselineYear)
	require.Equal(t, []string{"./lib/main.ts"}, loaded.EntryPoints)
	require.Equal(t, dir, loaded.Root)
	require.Equal(t, filepath.Join(dir, "dist"), loaded.OutPath())
	require.Equal(t, []string{filepath.Join(dir, "lib", "main.ts")}, loaded.EntryPaths())
}

// TestLoadPartialFile checks that keys missing from the file keep their defaults.
func TestLoadPartialFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte("owner: acme\nplatform: node\n"), DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "acme", cfg.Owner)
	require.Equal(t, PlatformNode, cfg.Platform)
	require.Equal(t, defaultProduct, cfg.Product)
	require.Equal(t, []string{defaultEntryPoint}, cfg.EntryPoints)
	require.Equal(t, DefaultDeclarationCommand(), cfg.Declarations.Command)
}

// TestLoadMalformedFile verifies YAML errors are reported.
func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte("entry_points: {"), DefaultFilePermissions))

	_, err := Load(path)
	require.ErrorContains(t, err, "unmarshal settings")
}
