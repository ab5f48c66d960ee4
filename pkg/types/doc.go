// Package types holds the interfaces shared across dotstate packages.
package types
