// Package version exposes build metadata for the bootstrapper.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
package version
