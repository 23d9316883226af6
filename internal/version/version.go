// Package version exposes the colloquy release version, embedded from
// the VERSION file next to this package.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the release version string.
func Get() string {
	return strings.TrimSpace(raw)
}
