// Package config defines the build settings and helpers to load, validate and
// save them in YAML format.
//
// Every setting has a default, so a project without servelat-build.yaml builds
// ./src/index.ts into ./dist. The dev-mode switch is read from the process
// environment, falling back to the project's .env file.
package config
