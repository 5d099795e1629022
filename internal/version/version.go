// Package version exposes the build version embedded at compile time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version string.
func Get() string {
	return strings.TrimSpace(versionContent)
}
