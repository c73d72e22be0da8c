package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact names written into the distribution directory.
const (
	ModuleFilename      = "index.js"
	CommonJSFilename    = "index.cjs"
	DeclarationFilename = "index.d.ts"
	ManifestFilename    = "package.json"

	// ModuleType marks the package as ECMAScript modules.
	ModuleType = "module"

	indent = "  "
)

var errManifestNotObject = errors.New("manifest must be a JSON object")

// Source is the subset of the project package.json copied into the distribution.
// Values are kept as raw JSON so strings, arrays and objects pass through untouched.
type Source struct {
	Name        json.RawMessage
	Version     json.RawMessage
	Description json.RawMessage
	Keywords    json.RawMessage
	Homepage    json.RawMessage
	Bugs        json.RawMessage
	License     json.RawMessage
	Author      json.RawMessage
	Repository  json.RawMessage
}

// Exports is the conditional exports map of the distribution.
type Exports struct {
	Types   string `json:"types"`
	Import  string `json:"import"`
	Require string `json:"require"`
}

// Distribution is the package.json written next to the build artifacts.
// Field order is the serialization order.
type Distribution struct {
	Name        json.RawMessage `json:"name,omitempty"`
	Version     json.RawMessage `json:"version,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Keywords    json.RawMessage `json:"keywords,omitempty"`
	Homepage    json.RawMessage `json:"homepage,omitempty"`
	Bugs        json.RawMessage `json:"bugs,omitempty"`
	License     json.RawMessage `json:"license,omitempty"`
	Author      json.RawMessage `json:"author,omitempty"`
	Exports     Exports         `json:"exports"`
	Repository  json.RawMessage `json:"repository,omitempty"`
	Type        string          `json:"type"`
	Types       string          `json:"types"`
}

// ReadSource parses the project manifest at path.
func ReadSource(path string) (*Source, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return ParseSource(contents)
}

// ParseSource parses a package.json document.
func ParseSource(contents []byte) (*Source, error) {
	trimmed := bytes.TrimSpace(contents)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errManifestNotObject
	}

	// Keys are matched exactly; struct decoding would also accept "Author" or "LICENSE".
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &Source{
		Name:        fields["name"],
		Version:     fields["version"],
		Description: fields["description"],
		Keywords:    fields["keywords"],
		Homepage:    fields["homepage"],
		Bugs:        fields["bugs"],
		License:     fields["license"],
		Author:      fields["author"],
		Repository:  fields["repository"],
	}, nil
}

// Derive builds the distribution manifest from the source manifest.
// A JSON null in the source counts as absent.
func Derive(src *Source) *Distribution {
	return &Distribution{
		Name:        present(src.Name),
		Version:     present(src.Version),
		Description: present(src.Description),
		Keywords:    present(src.Keywords),
		Homepage:    present(src.Homepage),
		Bugs:        present(src.Bugs),
		License:     present(src.License),
		Author:      present(src.Author),
		Exports: Exports{
			Types:   "./" + DeclarationFilename,
			Import:  "./" + ModuleFilename,
			Require: "./" + CommonJSFilename,
		},
		Repository: present(src.Repository),
		Type:       ModuleType,
		Types:      "./" + DeclarationFilename,
	}
}

// Marshal renders the manifest with two-space indentation and no trailing newline.
func (d *Distribution) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)

	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Files lists the distribution files the manifest points at, relative to the package root.
func (d *Distribution) Files() []string {
	refs := []string{d.Exports.Types, d.Exports.Import, d.Exports.Require, d.Types}

	seen := make(map[string]struct{}, len(refs))
	files := make([]string, 0, len(refs))

	for _, ref := range refs {
		name := strings.TrimPrefix(ref, "./")
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		files = append(files, name)
	}

	return files
}

func present(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	return raw
}
