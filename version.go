// Package datakit provides the version information for datakit.
package datakit

// Version is the current version of datakit.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
