package setup

import (
	"path/filepath"

	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Cleanup undoes a failed setup. The local checkout is removed only when this
// run created the repository and the path holds a .git directory. The config
// is then reset to unconfigured and saved.
func Cleanup(fsys types.FS, cfg *config.Config, isNewRepo bool) error {
	logger := logging.GetLogger("setup")
	logger.Info().Bool("new_repo", isNewRepo).Msg("Cleaning up failed setup")

	if isNewRepo && cfg.RepoPath != "" {
		if info, err := fsys.Stat(filepath.Join(cfg.RepoPath, ".git")); err == nil && info.IsDir() {
			logger.Info().Str("path", cfg.RepoPath).Msg("Removing partially created repository")
			if err := fsys.RemoveAll(cfg.RepoPath); err != nil {
				return errors.IO(err, "remove", cfg.RepoPath)
			}
		}
	}

	cfg.ResetToUnconfigured()
	if cfg.Path() == "" {
		return nil
	}
	return cfg.Save()
}
