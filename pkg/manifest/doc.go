// Package manifest models the profile manifest stored at the root of the
// storage directory and provides the Store that loads, validates, mutates,
// and atomically persists it.
//
// The manifest is the authoritative record of which home-relative paths are
// synced in which scope. A scope is either a profile name or CommonScope.
// A path can be shared by several profiles, but a path in common is never
// also in a profile.
package manifest
