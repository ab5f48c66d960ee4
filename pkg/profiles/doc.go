// Package profiles creates, renames, deletes, and activates profiles.
//
// A profile is a directory below the storage root plus a manifest entry
// listing the home-relative paths it owns. Activation links each of those
// paths, and every common path, from home into storage. Switching moves
// home from one profile's links to another's, touching only what differs.
//
// Operations that walk many entries keep going past per-entry failures and
// report them together; a later Activate of the same profile is idempotent
// and completes whatever was left.
package profiles
