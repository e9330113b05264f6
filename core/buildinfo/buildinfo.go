// Package buildinfo exposes build-time metadata injected via ldflags.
package buildinfo

var (
	// Version is the semantic version or tag of the build.
	Version = "dev"
	// Commit is the short git commit hash of the build.
	Commit = "none"
	// Date is the build timestamp in RFC3339.
	Date = "unknown"
)
