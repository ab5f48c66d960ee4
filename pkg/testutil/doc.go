// Package testutil provides isolated environments for dotstate tests.
//
// Key components:
//   - TestEnvironment: temp home and storage root, with HOME and the XDG
//     variables pointed inside the test's temp directory
//   - Git helpers: InitGitRepo and NewBareRemote drive the real git binary
//     and skip the test when it is not installed
//
// Usage guidelines:
//   - Manifest-only tests can use EnvMemoryOnly (afero in-memory FS)
//   - Anything that creates links needs EnvIsolated
//   - All test data should be defined inline, not in external files
package testutil
