// Package packager assembles the publishable distribution directory.
//
// A run cleans the output directory, bundles the entry points as ESM and
// CommonJS with esbuild, stamps the license header on the bundles and the type
// declarations, and in parallel copies the readme and license and writes a
// package.json whose entry points match the emitted files. A lock file in the
// project root keeps two builds from writing the same directory.
package packager
