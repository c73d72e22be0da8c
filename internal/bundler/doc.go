// Package bundler compiles TypeScript entry points into distributable bundles.
//
// ESBuild runs esbuild in-process for the JavaScript output and delegates type
// declarations to a DeclarationGenerator, by default an external
// dts-bundle-generator invocation.
package bundler
