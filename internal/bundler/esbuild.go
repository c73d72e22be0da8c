package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/logger"
)

const declarationExt = ".d.ts"

// ESBuild bundles with the in-process esbuild API.
type ESBuild struct {
	// root is the absolute working directory for relative paths in diagnostics.
	root string
	// platform is the esbuild target platform.
	platform api.Platform
	// declarations produces .d.ts files when a request asks for them.
	declarations DeclarationGenerator
}

// NewESBuild creates an esbuild-backed Bundler rooted at root.
func NewESBuild(root, platform string, declarations DeclarationGenerator) (*ESBuild, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &ESBuild{
		root:         abs,
		platform:     toPlatform(platform),
		declarations: declarations,
	}, nil
}

// Build runs one esbuild pass and, if requested, the declaration generator.
func (b *ESBuild) Build(ctx context.Context, req *Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entryNames, ext, err := splitNaming(req.Naming)
	if err != nil {
		return err
	}

	entries := make([]string, 0, len(req.EntryPoints))
	for _, entry := range req.EntryPoints {
		entries = append(entries, b.abs(entry))
	}

	outDir := b.abs(req.OutDir)

	logger.DebugKV(ctx, "Starting esbuild", "format", req.Format, "minify", req.Minify, "naming", req.Naming)

	//nolint:exhaustruct // esbuild defaults are fine for everything else.
	opts := api.BuildOptions{
		AbsWorkingDir:     b.root,
		EntryPoints:       entries,
		Outdir:            outDir,
		Bundle:            true,
		Write:             true,
		Format:            toFormat(req.Format),
		Platform:          b.platform,
		EntryNames:        entryNames,
		MinifyWhitespace:  req.Minify,
		MinifyIdentifiers: req.Minify,
		MinifySyntax:      req.Minify,
		LogLevel:          api.LogLevelSilent,
	}
	if ext != ".js" {
		opts.OutExtension = map[string]string{".js": ext}
	}

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return b.failure(ctx, ctxErr.Errors)
	}

	defer buildCtx.Dispose()

	stop := context.AfterFunc(ctx, buildCtx.Cancel)
	defer stop()

	result := buildCtx.Rebuild()
	if err = ctx.Err(); err != nil {
		return err
	}

	for _, msg := range result.Warnings {
		logger.WarnKV(ctx, "Bundler warning", "message", describe(msg))
	}

	if len(result.Errors) > 0 {
		return b.failure(ctx, result.Errors)
	}

	if !req.Declarations || b.declarations == nil {
		return nil
	}

	outbase := lowestCommonDir(entries)

	for _, entry := range entries {
		out := outputPath(outDir, outbase, entry, entryNames, declarationExt)

		logger.DebugKV(ctx, "Generating type declarations", "entry", entry, "out", out)

		if err = b.declarations.Generate(ctx, entry, out); err != nil {
			return err
		}
	}

	return nil
}

// failure logs every diagnostic and returns an error carrying the first one.
func (b *ESBuild) failure(ctx context.Context, messages []api.Message) error {
	formatted := api.FormatMessages(messages, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})
	for _, text := range formatted {
		logger.Error(ctx, strings.TrimRight(text, "\n"))
	}

	if len(messages) == 0 {
		return ErrBuildFailed
	}

	return fmt.Errorf("%w: %d error(s), first: %s", ErrBuildFailed, len(messages), describe(messages[0]))
}

func (b *ESBuild) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(b.root, p)
}

// describe renders a diagnostic as "file:line:column: text".
func describe(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}

	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func toFormat(format Format) api.Format {
	if format == FormatCommonJS {
		return api.FormatCommonJS
	}

	return api.FormatESModule
}

func toPlatform(platform string) api.Platform {
	switch platform {
	case config.PlatformNode:
		return api.PlatformNode
	case config.PlatformNeutral:
		return api.PlatformNeutral
	default:
		return api.PlatformBrowser
	}
}
