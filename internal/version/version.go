// Package version holds build metadata injected at link time.
package version

import "fmt"

// Version is set via ldflags in release builds:
// go build -ldflags "-X git.home.luguber.info/inful/buildwatch/internal/version.Version=v1.0.0".
var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("buildwatch %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// UserAgent is sent with outgoing HTTP requests.
func UserAgent() string { return "buildwatch/" + Version }
