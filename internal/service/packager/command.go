package packager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nowm/servelat-build/internal/bundler"
	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/domain/manifest"
	"github.com/nowm/servelat-build/internal/license"
	"github.com/nowm/servelat-build/internal/logger"
)

// Output naming templates, relative to the output directory.
const (
	moduleNaming      = "[dir]/[name].js"
	commonJSNaming    = "[dir]/[name].cjs"
	declarationNaming = "[dir]/[name].d.ts"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the build settings (defaults to servelat-build.yaml if present).
	ConfigPath string
	// LookupEnv resolves the dev-mode variable; nil means the process environment.
	LookupEnv config.LookupFunc
}

// packager runs a single clean build of the distribution directory.
// It is unexported; callers should use Run.
type packager struct {
	// cfg holds the resolved build settings.
	cfg *config.Config
	// bundler compiles the entry points.
	bundler bundler.Bundler
	// header is computed once so every artifact gets the same text.
	header license.Header
	// minify is false in dev mode.
	minify bool
	// root is the absolute project directory.
	root string
	// outDir is the absolute output directory.
	outDir string
	// entries are the absolute entry points.
	entries []string
}

// Run loads the settings and executes the packaging workflow once.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "packager")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pkg, err := newPackager(cfg, opts.LookupEnv, time.Now(), nil)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	started := time.Now()

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.InfoKV(ctx, "Package assembled", "out_dir", pkg.outDir, "elapsed", time.Since(started).Round(time.Millisecond))

	return nil
}

// newPackager resolves paths, the dev-mode switch and the license header.
// A nil bundler selects esbuild with the configured declaration command.
func newPackager(cfg *config.Config, lookup config.LookupFunc, now time.Time, b bundler.Bundler) (*packager, error) {
	devMode, err := cfg.DevModeEnabled(lookup)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	outDir, err := filepath.Abs(cfg.OutPath())
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	entries := make([]string, 0, len(cfg.EntryPoints))

	for _, entry := range cfg.EntryPaths() {
		var abs string

		if abs, err = filepath.Abs(entry); err != nil {
			return nil, fmt.Errorf("resolve entry point: %w", err)
		}

		entries = append(entries, abs)
	}

	if b == nil {
		declarations := bundler.NewCommandDeclarations(root, cfg.Declarations.Command)

		if b, err = bundler.NewESBuild(root, cfg.Platform, declarations); err != nil {
			return nil, err
		}
	}

	return &packager{
		cfg:     cfg,
		bundler: b,
		header:  license.NewHeader(cfg.Product, cfg.Owner, cfg.BaselineYear, now),
		minify:  !devMode,
		root:    root,
		outDir:  outDir,
		entries: entries,
	}, nil
}

// Run cleans the output directory, then compiles and assembles it.
// Compilation with annotation and the auxiliary files run as two concurrent groups.
func (p *packager) Run(ctx context.Context) error {
	lock, err := acquireLock(ctx, p.root)
	if err != nil {
		return err
	}

	defer lock.release(ctx)

	src, err := manifest.ReadSource(p.cfg.Path(p.cfg.Manifest))
	if err != nil {
		return err
	}

	dist := manifest.Derive(src)

	if err = p.clean(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return p.compile(groupCtx)
	})

	group.Go(func() error {
		return p.assemble(groupCtx, dist)
	})

	if err = group.Wait(); err != nil {
		return err
	}

	artifacts, err := p.verify(ctx, dist)
	if err != nil {
		return err
	}

	p.printReport(ctx, artifacts)

	return nil
}

// clean removes the output directory and recreates it empty.
func (p *packager) clean(ctx context.Context) error {
	logger.InfoKV(ctx, "Cleaning output directory", "path", p.outDir)

	if err := os.RemoveAll(p.outDir); err != nil {
		return fmt.Errorf("remove output directory: %w", err)
	}

	if err := os.MkdirAll(p.outDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	return nil
}

// compile runs the ESM and CommonJS builds concurrently and then annotates their output.
func (p *packager) compile(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "step", "compile")

	requests := []*bundler.Request{
		{
			EntryPoints:  p.entries,
			OutDir:       p.outDir,
			Format:       bundler.FormatESM,
			Minify:       p.minify,
			Naming:       moduleNaming,
			Declarations: true,
		},
		{
			EntryPoints: p.entries,
			OutDir:      p.outDir,
			Format:      bundler.FormatCommonJS,
			Minify:      p.minify,
			Naming:      commonJSNaming,
		},
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, req := range requests {
		group.Go(func() error {
			logger.InfoKV(groupCtx, "Bundling", "format", req.Format, "minify", req.Minify)

			if err := p.bundler.Build(groupCtx, req); err != nil {
				return fmt.Errorf("bundle %s: %w", req.Format, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return p.annotate(ctx)
}

// annotate prepends the license header to every primary artifact.
func (p *packager) annotate(ctx context.Context) error {
	files, err := p.primaryArtifacts()
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			logger.DebugKV(groupCtx, "Annotating", "file", file)

			return p.header.Prepend(file)
		})
	}

	if err = group.Wait(); err != nil {
		return fmt.Errorf("annotate artifacts: %w", err)
	}

	logger.InfoKV(ctx, "Annotated artifacts", "count", len(files), "copyright", p.header.Years)

	return nil
}

// assemble copies the readme and license and writes the distribution manifest.
func (p *packager) assemble(ctx context.Context, dist *manifest.Distribution) error {
	ctx = logger.WithKV(ctx, "step", "assemble")

	group, groupCtx := errgroup.WithContext(ctx)

	for _, name := range []string{p.cfg.Readme, p.cfg.LicenseFile} {
		group.Go(func() error {
			return p.copyFile(groupCtx, p.cfg.Path(name), filepath.Join(p.outDir, filepath.Base(name)))
		})
	}

	group.Go(func() error {
		return p.writeManifest(groupCtx, dist)
	})

	return group.Wait()
}

// copyFile copies src to dst verbatim.
func (p *packager) copyFile(ctx context.Context, src, dst string) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Copying", "from", src, "to", dst)

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return nil
}

// writeManifest serializes the distribution manifest into the output directory.
func (p *packager) writeManifest(ctx context.Context, dist *manifest.Distribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contents, err := dist.Marshal()
	if err != nil {
		return err
	}

	path := filepath.Join(p.outDir, manifest.ManifestFilename)

	logger.InfoKV(ctx, "Writing distribution manifest", "path", path)

	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// primaryArtifacts lists the bundles and declarations of every entry point.
func (p *packager) primaryArtifacts() ([]string, error) {
	var files []string

	for _, naming := range []string{moduleNaming, declarationNaming, commonJSNaming} {
		outputs, err := bundler.Outputs(p.outDir, p.entries, naming)
		if err != nil {
			return nil, err
		}

		files = append(files, outputs...)
	}

	return files, nil
}

// auxiliaryFiles lists the files written next to the bundles.
func (p *packager) auxiliaryFiles() []string {
	return []string{
		filepath.Join(p.outDir, filepath.Base(p.cfg.Readme)),
		filepath.Join(p.outDir, filepath.Base(p.cfg.LicenseFile)),
		filepath.Join(p.outDir, manifest.ManifestFilename),
	}
}
