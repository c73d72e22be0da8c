package packager

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nowm/servelat-build/internal/domain/manifest"
	"github.com/nowm/servelat-build/internal/logger"

	// Ensure SHA512 available for integrity calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction matches the algorithm npm uses for package integrity.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

var (
	// ErrMissingArtifact is returned when a file the package must contain was not written.
	ErrMissingArtifact = errors.New("artifact missing from output directory")

	errHashUnavailable = errors.New("hash function unavailable")
)

// artifact describes one file of the assembled package.
type artifact struct {
	// Name is the path relative to the output directory, with forward slashes.
	Name string
	// Size is the file size in bytes.
	Size int64
	// Integrity is the npm-style "sha512-<base64>" digest.
	Integrity string
}

// verify checks that every expected file exists and returns the full listing.
// Files nobody asked for are reported but do not fail the build.
func (p *packager) verify(ctx context.Context, dist *manifest.Distribution) ([]artifact, error) {
	primary, err := p.primaryArtifacts()
	if err != nil {
		return nil, err
	}

	expected := make(map[string]struct{}, len(primary)+len(dist.Files())+3)

	for _, file := range append(primary, p.auxiliaryFiles()...) {
		expected[filepath.ToSlash(mustRel(p.outDir, file))] = struct{}{}
	}

	for _, file := range dist.Files() {
		expected[file] = struct{}{}
	}

	artifacts, err := collectArtifacts(p.outDir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(artifacts))

	for _, a := range artifacts {
		present[a.Name] = struct{}{}

		if _, ok := expected[a.Name]; !ok {
			logger.WarnKV(ctx, "Unexpected file in output directory", "file", a.Name)
		}
	}

	var missing []string

	for name := range expected {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, strings.Join(missing, ", "))
	}

	return artifacts, nil
}

// collectArtifacts walks dir in lexical order.
func collectArtifacts(dir string) ([]artifact, error) {
	var artifacts []artifact

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		sum, err := integrity(path)
		if err != nil {
			return err
		}

		artifacts = append(artifacts, artifact{
			Name:      filepath.ToSlash(mustRel(dir, path)),
			Size:      info.Size(),
			Integrity: sum,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list output directory: %w", err)
	}

	return artifacts, nil
}

// integrity returns the subresource-integrity string of the file at path.
func integrity(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if !DefaultChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return "sha512-" + base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// printReport logs the package contents and what to do with them.
func (p *packager) printReport(ctx context.Context, artifacts []artifact) {
	var total int64

	for _, a := range artifacts {
		total += a.Size
		logger.InfoKV(ctx, "Artifact", "file", a.Name, "size", a.Size, "integrity", a.Integrity)
	}

	rel, err := filepath.Rel(p.root, p.outDir)
	if err != nil {
		rel = p.outDir
	}

	var builder strings.Builder

	builder.WriteString("The package is ready (")
	builder.WriteString(strconv.Itoa(len(artifacts)))
	builder.WriteString(" files, ")
	builder.WriteString(strconv.FormatInt(total, 10))
	builder.WriteString(" bytes). To publish it, run:\n")
	builder.WriteString("npm publish ")
	builder.WriteString(filepath.ToSlash(rel))

	logger.Info(ctx, builder.String())
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}

	return rel
}
