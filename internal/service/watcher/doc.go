// Package watcher reruns the full build whenever project sources change.
//
// Each rebuild is a complete clean build; nothing is cached between runs.
package watcher
