// ============================================================================
// minerva - customer registry over gRPC
// ============================================================================
//
// Package:     version
// Description: Version information for the minerva binary and service
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version constants
const (
	// Service is the registry service version reported by health checks
	Service = "1.2.0"

	// Wire is the version of the minerva.Minerva RPC contract
	Wire = "1"
)

// Set at build time with -ldflags "-X github.com/msto63/minerva/pkg/core/version.Commit=..."
var (
	Commit    = "dev"
	BuildDate = "unknown"
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Wire      string `json:"wire" yaml:"wire"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the version information of the running binary
func Get() Info {
	return Info{
		Version:   Service,
		Wire:      Wire,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line summary
func (i Info) String() string {
	return fmt.Sprintf("minerva %s (wire v%s, commit %s, built %s, %s %s)",
		i.Version, i.Wire, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
