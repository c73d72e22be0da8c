package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the build settings. The zero value of every field falls back to the defaults below.
type Config struct {
	// Root is the project directory; relative paths below are resolved against it.
	Root string `yaml:"root"`
	// EntryPoints are the source modules handed to the bundler.
	EntryPoints []string `yaml:"entry_points"`
	// OutDir is the distribution directory. It is removed at the start of every build.
	OutDir string `yaml:"out_dir"`
	// Manifest is the source package.json.
	Manifest string `yaml:"manifest"`
	// Readme is copied verbatim into OutDir.
	Readme string `yaml:"readme"`
	// LicenseFile is copied verbatim into OutDir.
	LicenseFile string `yaml:"license_file"`
	// Product is the name printed in the license header.
	Product string `yaml:"product"`
	// Owner is the copyright holder printed in the license header.
	Owner string `yaml:"owner"`
	// BaselineYear is the first copyright year.
	BaselineYear int `yaml:"baseline_year"`
	// Platform is the bundler target platform: browser, node or neutral.
	Platform string `yaml:"platform"`
	// DevMode describes the environment switch that disables minification.
	DevMode DevMode `yaml:"dev_mode"`
	// Declarations configures the type declaration generator.
	Declarations Declarations `yaml:"declarations"`
}

// DevMode is the environment variable and value that turn minification off.
type DevMode struct {
	Env   string `yaml:"env"`
	Value string `yaml:"value"`
}

// Declarations configures the external command producing bundled .d.ts files.
// The placeholders {entry} and {out} are substituted per entry point.
type Declarations struct {
	Command []string `yaml:"command"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "servelat-build.yaml"

	// DefaultFilePermissions is used for every file the build writes.
	DefaultFilePermissions = 0o644

	// DefaultDirPermissions is used for directories the build creates.
	DefaultDirPermissions = 0o755

	defaultRoot         = "."
	defaultEntryPoint   = "./src/index.ts"
	defaultOutDir       = "./dist"
	defaultManifest     = "package.json"
	defaultReadme       = "README.md"
	defaultLicenseFile  = "LICENSE"
	defaultProduct      = "servelat"
	defaultOwner        = "nowm"
	defaultBaselineYear = 2025
	defaultPlatform     = PlatformBrowser
	defaultDevModeEnv   = "NODE_ENV"
	defaultDevModeValue = "development"
)

// Supported bundler platforms.
const (
	PlatformBrowser = "browser"
	PlatformNode    = "node"
	PlatformNeutral = "neutral"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoEntryPoints is returned when there is nothing to bundle.
	errNoEntryPoints = errors.New("at least one entry point must be provided")
	// errUnsafeOutDir is returned when cleaning the output directory would remove sources.
	errUnsafeOutDir = errors.New("output directory overlaps the project sources")
	// errBadBaselineYear is returned for a non-positive baseline year.
	errBadBaselineYear = errors.New("baseline year must be positive")
	// errUnknownPlatform is returned for an unsupported platform name.
	errUnknownPlatform = errors.New("unknown platform")
	// errNoDeclarationCommand is returned when the declaration command is empty.
	errNoDeclarationCommand = errors.New("declaration command must not be empty")
)

// DefaultDeclarationCommand bundles declarations with dts-bundle-generator from the local node_modules.
func DefaultDeclarationCommand() []string {
	return []string{"npx", "--no-install", "dts-bundle-generator", "--no-check", "--out-file", "{out}", "{entry}"}
}

// Default returns the settings used when no configuration file exists.
func Default() *Config {
	return &Config{
		Root:         defaultRoot,
		EntryPoints:  []string{defaultEntryPoint},
		OutDir:       defaultOutDir,
		Manifest:     defaultManifest,
		Readme:       defaultReadme,
		LicenseFile:  defaultLicenseFile,
		Product:      defaultProduct,
		Owner:        defaultOwner,
		BaselineYear: defaultBaselineYear,
		Platform:     defaultPlatform,
		DevMode: DevMode{
			Env:   defaultDevModeEnv,
			Value: defaultDevModeValue,
		},
		Declarations: Declarations{
			Command: DefaultDeclarationCommand(),
		},
	}
}

// Load reads settings from path. An empty path means DefaultConfigFilename,
// which may be absent; an explicit path must exist.
// A relative root is resolved against the directory of the configuration file.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}

		if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
			cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to path in YAML format.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and checks the result.
//
//nolint:cyclop // A flat list of independent checks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if len(cfg.EntryPoints) == 0 {
		return errNoEntryPoints
	}

	if cfg.BaselineYear <= 0 {
		return fmt.Errorf("%w: %d", errBadBaselineYear, cfg.BaselineYear)
	}

	if !slices.Contains([]string{PlatformBrowser, PlatformNode, PlatformNeutral}, cfg.Platform) {
		return fmt.Errorf("%w: %q", errUnknownPlatform, cfg.Platform)
	}

	if len(cfg.Declarations.Command) == 0 || strings.TrimSpace(cfg.Declarations.Command[0]) == "" {
		return errNoDeclarationCommand
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	out, err := filepath.Abs(cfg.OutPath())
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	if Within(root, out) {
		return fmt.Errorf("%w: %s contains %s", errUnsafeOutDir, out, root)
	}

	for _, entry := range cfg.EntryPoints {
		abs, err := filepath.Abs(cfg.Path(entry))
		if err != nil {
			return fmt.Errorf("resolve entry point: %w", err)
		}

		if Within(abs, out) {
			return fmt.Errorf("%w: entry point %s is inside %s", errUnsafeOutDir, entry, out)
		}
	}

	return nil
}

// Path resolves p against the project root unless it is absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.Root, p)
}

// OutPath returns the resolved output directory.
func (c *Config) OutPath() string {
	return c.Path(c.OutDir)
}

// EntryPaths returns the resolved entry points.
func (c *Config) EntryPaths() []string {
	paths := make([]string, 0, len(c.EntryPoints))
	for _, entry := range c.EntryPoints {
		paths = append(paths, c.Path(entry))
	}

	return paths
}

func applyDefaults(cfg *Config) {
	defaults := Default()

	setIfEmpty(&cfg.Root, defaults.Root)
	setIfEmpty(&cfg.OutDir, defaults.OutDir)
	setIfEmpty(&cfg.Manifest, defaults.Manifest)
	setIfEmpty(&cfg.Readme, defaults.Readme)
	setIfEmpty(&cfg.LicenseFile, defaults.LicenseFile)
	setIfEmpty(&cfg.Product, defaults.Product)
	setIfEmpty(&cfg.Owner, defaults.Owner)
	setIfEmpty(&cfg.Platform, defaults.Platform)
	setIfEmpty(&cfg.DevMode.Env, defaults.DevMode.Env)
	setIfEmpty(&cfg.DevMode.Value, defaults.DevMode.Value)

	if cfg.BaselineYear == 0 {
		cfg.BaselineYear = defaults.BaselineYear
	}

	if cfg.Declarations.Command == nil {
		cfg.Declarations.Command = defaults.Declarations.Command
	}
}

func setIfEmpty(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// Within reports whether path equals dir or lies below it.
func Within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
