// Package license renders the copyright header stamped on build artifacts.
package license
