package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X github.com/snarg/audio-transcriber/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the version string. Builds without ldflags fall back to the
// module version recorded by the Go toolchain.
func Resolve() string {
	return resolveVersion(Version, debug.ReadBuildInfo)
}

func resolveVersion(base string, buildInfo func() (*debug.BuildInfo, bool)) string {
	if base != "" && base != "dev" {
		return strings.TrimPrefix(base, "v")
	}
	if info, ok := buildInfo(); ok && info != nil {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return strings.TrimPrefix(v, "v")
		}
	}
	return "dev"
}

// String returns version, commit and build date on one line.
func String() string {
	return Resolve() + " (commit " + Commit + ", built " + Date + ")"
}
