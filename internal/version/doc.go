// Package version reports which servelat-build and which esbuild produced a package.
//
// Version, Commit and BuildTime are set with -ldflags "-X ..."; the esbuild version
// comes from the module build info.
package version
