// Package paths provides centralized path handling for dotstate.
//
// It covers three concerns:
//
//   - The Resolver, which expands user input against the home directory,
//     follows symlink chains with a bounded depth, and answers containment
//     questions after canonicalization. Every component that touches home
//     classifies paths through it once, at ingress.
//   - XDG locations for the config file, log/state directory, and the
//     default storage root.
//   - Profile naming rules (sanitize and validate).
//
// # Environment Variables
//
//   - DOTSTATE_CONFIG: full path of the config file
//   - DOTSTATE_CONFIG_DIR: override $XDG_CONFIG_HOME/dotstate
//   - DOTSTATE_DATA_DIR: override $XDG_DATA_HOME/dotstate
//   - DOTSTATE_STATE_DIR: override $XDG_STATE_HOME/dotstate
package paths
