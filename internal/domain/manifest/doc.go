// Package manifest derives the published package.json from the project's own.
//
// Only a fixed set of descriptive fields is copied; the entry point fields
// (exports, type, types) are always rewritten to point at the files the build
// emits into the distribution directory.
package manifest
