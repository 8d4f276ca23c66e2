package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata, set with
// -ldflags "-X github.com/drsullivan13/weather-server/internal/config.Version=...".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the release version.
func GetVersion() string {
	return Version
}

// GetGitCommit returns the commit set at link time, falling back to the VCS
// revision the toolchain stamped into the binary.
func GetGitCommit() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shortRevision(s.Value)
			}
		}
	}
	return "unknown"
}

// GetFullVersion returns the version with build and runtime details.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s, %s)", Version, Build, GetGitCommit(), runtime.Version())
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
