package app

import "fmt"

// Build metadata, set at link time:
//
//	go build -ldflags "-X github.com/heartmarshall/laudo-backend/internal/app.Version=1.4.0 \
//	  -X github.com/heartmarshall/laudo-backend/internal/app.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildVersion returns the version string reported at startup and by /health.
func BuildVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
}
