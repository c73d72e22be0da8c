package bundler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nowm/servelat-build/internal/config"
)

const (
	indexSource = `import { shout } from "./util";

export function greet(name: string): string {
  const greeting = "Hello, " + name;
  return shout(greeting);
}
`
	utilSource = `export function shout(value: string): string {
  return value.toUpperCase() + "!";
}
`
)

// recordingDeclarations writes a stub .d.ts and remembers what it was asked for.
type recordingDeclarations struct {
	mu    sync.Mutex
	calls [][2]string
}

func (r *recordingDeclarations) Generate(_ context.Context, entry, out string) error {
	r.mu.Lock()
	r.calls = append(r.calls, [2]string{entry, out})
	r.mu.Unlock()

	return os.WriteFile(out, []byte("export declare function greet(name: string): string;\n"), config.DefaultFilePermissions)
}

// newProject lays out a two-module TypeScript project and returns its root.
func newProject(t *testing.T, index string) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), config.DefaultDirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "index.ts"), []byte(index), config.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "util.ts"), []byte(utilSource), config.DefaultFilePermissions))

	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// TestESBuild_FormatsAndNaming bundles both formats and checks file names, module syntax and declarations.
func TestESBuild_FormatsAndNaming(t *testing.T) {
	t.Parallel()

	root := newProject(t, indexSource)
	decls := new(recordingDeclarations)

	b, err := NewESBuild(root, config.PlatformBrowser, decls)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, b.Build(ctx, &Request{
		EntryPoints:  []string{"./src/index.ts"},
		OutDir:       "./dist",
		Format:       FormatESM,
		Naming:       "[dir]/[name].js",
		Declarations: true,
	}))
	require.NoError(t, b.Build(ctx, &Request{
		EntryPoints: []string{"./src/index.ts"},
		OutDir:      "./dist",
		Format:      FormatCommonJS,
		Naming:      "[dir]/[name].cjs",
	}))

	esm := readFile(t, filepath.Join(root, "dist", "index.js"))
	require.Contains(t, esm, "export {")
	require.Contains(t, esm, "function greet(name)")
	require.Contains(t, esm, "toUpperCase")

	cjs := readFile(t, filepath.Join(root, "dist", "index.cjs"))
	require.Contains(t, cjs, "module.exports")
	require.NotContains(t, cjs, "export {")

	// Everything is bundled into the entry file.
	_, err = os.Stat(filepath.Join(root, "dist", "util.js"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// Declarations only for the request that asked for them.
	require.Equal(t, [][2]string{{
		filepath.Join(root, "src", "index.ts"),
		filepath.Join(root, "dist", "index.d.ts"),
	}}, decls.calls)
}

// TestESBuild_Minify compares minified and formatted output of the same entry point.
func TestESBuild_Minify(t *testing.T) {
	t.Parallel()

	root := newProject(t, indexSource)

	b, err := NewESBuild(root, config.PlatformNeutral, nil)
	require.NoError(t, err)

	build := func(outDir string, minify bool) string {
		require.NoError(t, b.Build(context.Background(), &Request{
			EntryPoints: []string{"./src/index.ts"},
			OutDir:      outDir,
			Format:      FormatESM,
			Naming:      "[dir]/[name].js",
			Minify:      minify,
		}))

		return readFile(t, filepath.Join(root, outDir, "index.js"))
	}

	pretty := build("pretty", false)
	minified := build("minified", true)

	require.Contains(t, pretty, "\n  return ")
	require.NotContains(t, minified, "\n  ")
	require.Contains(t, minified, "greet")
	require.Less(t, len(minified), len(pretty))
}

// TestESBuild_SyntaxError ensures bundler errors surface as ErrBuildFailed and skip declarations.
func TestESBuild_SyntaxError(t *testing.T) {
	t.Parallel()

	root := newProject(t, "export const = ;\n")
	decls := new(recordingDeclarations)

	b, err := NewESBuild(root, config.PlatformBrowser, decls)
	require.NoError(t, err)

	err = b.Build(context.Background(), &Request{
		EntryPoints:  []string{"./src/index.ts"},
		OutDir:       "./dist",
		Format:       FormatESM,
		Naming:       "[dir]/[name].js",
		Declarations: true,
	})
	require.ErrorIs(t, err, ErrBuildFailed)
	require.Contains(t, err.Error(), "index.ts")
	require.Empty(t, decls.calls)

	_, err = os.Stat(filepath.Join(root, "dist", "index.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestESBuild_MissingEntryPoint covers an entry point that does not exist.
func TestESBuild_MissingEntryPoint(t *testing.T) {
	t.Parallel()

	b, err := NewESBuild(t.TempDir(), config.PlatformBrowser, nil)
	require.NoError(t, err)

	err = b.Build(context.Background(), &Request{
		EntryPoints: []string{"./src/index.ts"},
		OutDir:      "./dist",
		Format:      FormatESM,
		Naming:      "[dir]/[name].js",
	})
	require.ErrorIs(t, err, ErrBuildFailed)
}

// TestSplitNaming checks template parsing.
func TestSplitNaming(t *testing.T) {
	t.Parallel()

	base, ext, err := splitNaming("[dir]/[name].cjs")
	require.NoError(t, err)
	require.Equal(t, "[dir]/[name]", base)
	require.Equal(t, ".cjs", ext)

	for _, bad := range []string{"[dir]/[name]", "[dir]/bundle.js", ""} {
		_, _, err = splitNaming(bad)
		require.ErrorIs(t, err, errBadNaming, bad)
	}
}

// TestOutputs mirrors esbuild naming for entries at and below the outbase.
func TestOutputs(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/project")
	entries := []string{
		filepath.Join(root, "src", "index.ts"),
		filepath.Join(root, "src", "cli", "main.ts"),
	}

	require.Equal(t, filepath.Join(root, "src"), lowestCommonDir(entries))

	out := filepath.Join(root, "dist")

	got, err := Outputs(out, entries, "[dir]/[name].d.ts")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(out, "index.d.ts"),
		filepath.Join(out, "cli", "main.d.ts"),
	}, got)

	got, err = Outputs(out, entries[:1], "[dir]/[name].cjs")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "index.cjs")}, got)

	_, err = Outputs(out, entries, "bundle")
	require.ErrorIs(t, err, errBadNaming)
}

// TestCommandDeclarations runs a shell command in place of dts-bundle-generator.
func TestCommandDeclarations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "dist", "index.d.ts")
	ctx := context.Background()

	ok := NewCommandDeclarations(dir, []string{"sh", "-c", `printf 'declare const x: number;\n' > "$1"`, "sh", "{out}"})
	require.NoError(t, ok.Generate(ctx, "src/index.ts", out))
	require.Equal(t, "declare const x: number;\n", readFile(t, out))

	failing := NewCommandDeclarations(dir, []string{"sh", "-c", "echo boom >&2; exit 3"})
	err := failing.Generate(ctx, "src/index.ts", out)
	require.ErrorIs(t, err, ErrDeclarationsFailed)

	silent := NewCommandDeclarations(dir, []string{"true"})
	err = silent.Generate(ctx, "src/index.ts", filepath.Join(dir, "other", "index.d.ts"))
	require.ErrorIs(t, err, ErrDeclarationsFailed)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Equal(t, []string{"tool", "--in", "a.ts", "--out=b.d.ts"},
		NewCommandDeclarations(dir, []string{"tool", "--in", "{entry}", "--out={out}"}).args("a.ts", "b.d.ts"))
}

// TestESBuild_Cancelled checks that a cancelled context aborts the build.
func TestESBuild_Cancelled(t *testing.T) {
	t.Parallel()

	root := newProject(t, indexSource)

	b, err := NewESBuild(root, config.PlatformBrowser, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = b.Build(ctx, &Request{
		EntryPoints: []string{"./src/index.ts"},
		OutDir:      "./dist",
		Format:      FormatESM,
		Naming:      "[dir]/[name].js",
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrBuildFailed)
}
