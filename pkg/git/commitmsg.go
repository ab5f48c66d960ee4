package git

import (
	"fmt"
	"path"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/paths"
)

// maxHints is how many basenames a commit message lists before switching to
// the "(N+ files changed)" summary.
const maxHints = 5

// Fixed commit messages
const (
	MessageProfileConfig = "Update profile configuration"
	MessageDefault       = "Update dotfiles"
	MessageInitial       = "Initial commit"
)

// CommitMessage summarises a change set, for example
// "Add 1 file, Update 1 file: .vimrc, .zshrc". The manifest file only
// matters when it is the sole change.
func CommitMessage(changes []Change) string {
	if len(changes) == 0 {
		return MessageDefault
	}

	var files []Change
	for _, c := range changes {
		if c.Path != paths.ManifestFileName {
			files = append(files, c)
		}
	}
	if len(files) == 0 {
		return MessageProfileConfig
	}

	var added, updated, removed int
	for _, c := range files {
		switch c.Code {
		case StatusAdded, StatusUntracked:
			added++
		case StatusDeleted:
			removed++
		default:
			updated++
		}
	}

	var parts []string
	if added > 0 {
		parts = append(parts, "Add "+countFiles(added))
	}
	if updated > 0 {
		parts = append(parts, "Update "+countFiles(updated))
	}
	if removed > 0 {
		parts = append(parts, "Remove "+countFiles(removed))
	}
	msg := strings.Join(parts, ", ")

	if len(files) > maxHints {
		return fmt.Sprintf("%s (%d+ files changed)", msg, len(files))
	}

	hints := make([]string, 0, len(files))
	for _, c := range files {
		hints = append(hints, path.Base(c.Path))
	}
	return msg + ": " + strings.Join(hints, ", ")
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}
