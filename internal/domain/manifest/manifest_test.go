package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sourceManifest = `{
  "name": "servelat",
  "version": "1.2.3",
  "description": "Serve <lat> & friends",
  "keywords": ["http", "server"],
  "homepage": "https://example.com/servelat",
  "bugs": {"url": "https://example.com/servelat/issues"},
  "license": "MIT",
  "author": "nowm",
  "repository": {"type": "git", "url": "git+https://example.com/servelat.git"},
  "scripts": {"build": "servelat-build"},
  "devDependencies": {"typescript": "^5.0.0"},
  "main": "src/index.ts",
  "type": "commonjs",
  "types": "src/index.d.ts"
}`

const expectedDistribution = `{
  "name": "servelat",
  "version": "1.2.3",
  "description": "Serve <lat> & friends",
  "keywords": [
    "http",
    "server"
  ],
  "homepage": "https://example.com/servelat",
  "bugs": {
    "url": "https://example.com/servelat/issues"
  },
  "license": "MIT",
  "author": "nowm",
  "exports": {
    "types": "./index.d.ts",
    "import": "./index.js",
    "require": "./index.cjs"
  },
  "repository": {
    "type": "git",
    "url": "git+https://example.com/servelat.git"
  },
  "type": "module",
  "types": "./index.d.ts"
}`

// TestDeriveAndMarshal checks field selection, key order, indentation and the absence of a trailing newline.
func TestDeriveAndMarshal(t *testing.T) {
	t.Parallel()

	src, err := ParseSource([]byte(sourceManifest))
	require.NoError(t, err)

	data, err := Derive(src).Marshal()
	require.NoError(t, err)
	require.Equal(t, expectedDistribution, string(data))
}

// TestDeriveMinimalSource ensures absent and null fields are dropped while the synthesized fields remain.
func TestDeriveMinimalSource(t *testing.T) {
	t.Parallel()

	src, err := ParseSource([]byte(`{"name": "tiny", "description": null}`))
	require.NoError(t, err)

	data, err := Derive(src).Marshal()
	require.NoError(t, err)
	require.Equal(t, `{
  "name": "tiny",
  "exports": {
    "types": "./index.d.ts",
    "import": "./index.js",
    "require": "./index.cjs"
  },
  "type": "module",
  "types": "./index.d.ts"
}`, string(data))
}

// TestExportsAreFixed verifies the exports map ignores whatever the source declares.
func TestExportsAreFixed(t *testing.T) {
	t.Parallel()

	src, err := ParseSource([]byte(`{"name": "x", "exports": {"default": "./lib.js"}}`))
	require.NoError(t, err)

	dist := Derive(src)
	require.Equal(t, Exports{Types: "./index.d.ts", Import: "./index.js", Require: "./index.cjs"}, dist.Exports)
	require.Equal(t, []string{DeclarationFilename, ModuleFilename, CommonJSFilename}, dist.Files())
}

// TestParseSourceExactKeys copies only lowercase keys and lets the last duplicate win.
func TestParseSourceExactKeys(t *testing.T) {
	t.Parallel()

	src, err := ParseSource([]byte(`{"Name": "upper", "LICENSE": "MIT", "author": "a", "author": "b"}`))
	require.NoError(t, err)

	dist := Derive(src)
	require.Nil(t, dist.Name)
	require.Nil(t, dist.License)
	require.JSONEq(t, `"b"`, string(dist.Author))
}

// TestParseSourceErrors covers non-object documents and malformed JSON.
func TestParseSourceErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseSource([]byte(`["not", "an", "object"]`))
	require.ErrorIs(t, err, errManifestNotObject)

	_, err = ParseSource([]byte(`{"name": `))
	require.ErrorContains(t, err, "decode manifest")

	_, err = ReadSource(filepath.Join(t.TempDir(), "package.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
