// Package config handles dotstate's user configuration.
//
// Configuration is layered with koanf: embedded defaults, then the user's
// config.toml, then DOTSTATE_* environment variables (double underscore
// separates nesting levels, DOTSTATE_GITHUB__OWNER sets github.owner), then
// overrides supplied by the caller such as command-line flags. Saving writes
// TOML with owner-only permissions, since the file may hold a token.
package config
