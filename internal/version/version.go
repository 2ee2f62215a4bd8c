package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Warprun.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/BioHazard786/Warprun/internal/version.Version=v1.0.0'"
var Version = "dev"

// Commit is the source revision, set the same way as Version.
var Commit = "none"

// String describes the build.
func String() string {
	return fmt.Sprintf("warprun %s (%s, %s, %s/%s)", Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
