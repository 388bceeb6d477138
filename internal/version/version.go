// Package version holds build version information.
package version

// Version is the Voxgate release version, overridable at build time with
// -ldflags "-X github.com/voxgate/voxgate/internal/version.Version=...".
var Version = "0.3.0"

// Info returns a human-readable version string.
func Info() string {
	return "voxgate " + Version
}
