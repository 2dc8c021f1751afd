// Package version holds build metadata injected with -ldflags.
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String formats the metadata for --version output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + BuildDate + ")"
}
