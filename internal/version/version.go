package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// esbuildModule is the bundler module whose linked version is reported next to ours.
const esbuildModule = "github.com/evanw/esbuild"

// unknown stands in for metadata that is not available in this binary.
const unknown = "unknown"

var (
	// Version is the semantic version of servelat-build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = unknown
)

// Bundler returns the esbuild version linked into the binary.
func Bundler() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return unknown
	}

	for _, dep := range info.Deps {
		if dep.Path != esbuildModule {
			continue
		}

		if dep.Replace != nil {
			return dep.Replace.Version
		}

		return dep.Version
	}

	return unknown
}

// Full describes the build: our version, the bundler and Go toolchain, commit and build time.
func Full() string {
	return fmt.Sprintf("servelat-build %s (esbuild %s, %s, commit: %s, built at: %s)",
		Version, Bundler(), runtime.Version(), Commit, BuildTime)
}
