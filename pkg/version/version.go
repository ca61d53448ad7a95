package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/hsdnet/controller/pkg/version.Version=v1.0.0 \
//	  -X github.com/hsdnet/controller/pkg/version.GitCommit=abc1234 \
//	  -X github.com/hsdnet/controller/pkg/version.BuildDate=2026-07-31"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info renders a one-line human-readable summary for the "version"
// subcommand and startup log line.
func Info() string {
	return fmt.Sprintf("hsdnctl %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
