// Package version provides build information. Values are set at build time:
//
//	go build -ldflags "-X github.com/vaultestim/vaultestim/internal/version.Version=v1.2.3 -X github.com/vaultestim/vaultestim/internal/version.Commit=abc123"
package version

import "fmt"

var (
	// Version defaults to "dev".
	Version = "dev"
	Commit  = ""
)

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// String returns the version with the short commit when known.
func String() string {
	if Commit == "" {
		return Version
	}
	c := Commit
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, c)
}
