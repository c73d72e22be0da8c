package bundler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/nowm/servelat-build/internal/config"
)

// Format is the module system of the emitted bundle.
type Format string

// Supported output formats.
const (
	FormatESM      Format = "esm"
	FormatCommonJS Format = "cjs"
)

const (
	dirPlaceholder  = "[dir]"
	namePlaceholder = "[name]"
)

var (
	// ErrBuildFailed is returned when the bundler reports at least one error.
	ErrBuildFailed = errors.New("bundle failed")
	// ErrDeclarationsFailed is returned when type declarations could not be generated.
	ErrDeclarationsFailed = errors.New("declaration generation failed")

	errBadNaming = errors.New("naming template must contain [name] and end with a file extension")
)

// Request describes one bundler invocation.
type Request struct {
	// EntryPoints are the modules to bundle.
	EntryPoints []string
	// OutDir receives the emitted files.
	OutDir string
	// Format selects ESM or CommonJS output.
	Format Format
	// Minify enables whitespace, identifier and syntax minification.
	Minify bool
	// Naming is the output path template, e.g. "[dir]/[name].cjs".
	Naming string
	// Declarations requests a .d.ts file per entry point.
	Declarations bool
}

// Bundler turns entry points into files on disk.
type Bundler interface {
	Build(ctx context.Context, req *Request) error
}

// DeclarationGenerator writes a bundled declaration file for one entry point.
type DeclarationGenerator interface {
	Generate(ctx context.Context, entry, out string) error
}

// splitNaming separates "[dir]/[name].js" into the extensionless template and ".js".
func splitNaming(naming string) (string, string, error) {
	ext := path.Ext(naming)
	base := strings.TrimSuffix(naming, ext)

	if ext == "" || !strings.Contains(base, namePlaceholder) || strings.Contains(ext, namePlaceholder) {
		return "", "", fmt.Errorf("%w: %q", errBadNaming, naming)
	}

	return base, ext, nil
}

// expandNaming fills a naming template for an entry point located in dir (relative to the outbase).
func expandNaming(template, dir, name string) string {
	out := strings.ReplaceAll(template, dirPlaceholder, dir)
	out = strings.ReplaceAll(out, namePlaceholder, name)

	return path.Clean(strings.TrimPrefix(out, "/"))
}

// Outputs returns the files a build with the given naming template writes for entries.
// Entries must be absolute so that the shared outbase can be computed.
func Outputs(outDir string, entries []string, naming string) ([]string, error) {
	base, ext, err := splitNaming(naming)
	if err != nil {
		return nil, err
	}

	outbase := lowestCommonDir(entries)
	outputs := make([]string, 0, len(entries))

	for _, entry := range entries {
		outputs = append(outputs, outputPath(outDir, outbase, entry, base, ext))
	}

	return outputs, nil
}

// outputPath mirrors esbuild's entry naming for entry relative to outbase.
func outputPath(outDir, outbase, entry, entryNames, ext string) string {
	dir, err := filepath.Rel(outbase, filepath.Dir(entry))
	if err != nil || dir == "." {
		dir = ""
	}

	name := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
	rel := expandNaming(entryNames, filepath.ToSlash(dir), name)

	return filepath.Join(outDir, filepath.FromSlash(rel)+ext)
}

// lowestCommonDir is the directory esbuild uses as outbase when none is given.
func lowestCommonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	common := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		dir := filepath.Dir(p)
		for !config.Within(dir, common) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}

			common = parent
		}
	}

	return common
}

