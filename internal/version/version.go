// ABOUTME: Version information for playout
// ABOUTME: Reported by the CLI and in startup logs
package version

import "fmt"

const (
	// Version is the current release
	Version = "0.1.0"

	// Product is the product name
	Product = "Playout"

	// Manufacturer is the organization publishing playout
	Manufacturer = "Resonate Protocol"
)

// String returns the human-readable version line
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
