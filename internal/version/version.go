package version

import "fmt"

// Version is the mobsite release. Set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/mobsite/internal/version.Version=v0.3.0".
var Version = "unknown"

// Build metadata, set the same way.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `mobsite --version`.
func String() string {
	return fmt.Sprintf("mobsite %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
