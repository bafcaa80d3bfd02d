// Package version holds build-time version information for the marketcache
// binary. The variables are injected via -ldflags:
//
// -X github.com/ferro-labs/market-cache/internal/version.Version=v0.1.0
// -X github.com/ferro-labs/market-cache/internal/version.Commit=abc1234
// -X github.com/ferro-labs/market-cache/internal/version.Date=2026-02-25T00:00:00Z
package version

import (
	"fmt"
	"runtime"
)

// Variables set at link time. Local builds keep the dev values.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the machine-readable build description.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build description of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// String returns a single-line human-readable version string, e.g.:
//
// v0.1.0 (commit abc1234, built 2026-02-25T12:00:00Z, go1.24.0)
func String() string {
	i := Get()
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}

// Short returns just the version tag, e.g. "v0.1.0" or "dev".
func Short() string {
	return Version
}
