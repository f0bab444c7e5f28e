// Package envconfig reads the small amount of environment-driven
// configuration this repo's binaries need.
package envconfig

import "os"

// Getenv returns the environment variable key, or fallback if it's unset
// or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
