// Package filesystem provides the types.FS implementation used by dotstate,
// an afero adapter over either the OS or an in-memory backend, together
// with the copy and atomic-write helpers the sync engine builds on.
package filesystem
