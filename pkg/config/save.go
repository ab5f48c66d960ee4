package config

import (
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// FileMode of the saved config; it may contain a token
const FileMode = 0600

// Save writes the config to Path atomically
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New(errors.ErrConfigSave, "config has no path to save to")
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the config to path atomically with mode 0600
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigSave, "failed to encode config")
	}

	fsys := filesystem.NewOS()
	if err := fsys.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrapf(err, errors.ErrConfigSave, "cannot create %s", filepath.Dir(path))
	}
	if err := filesystem.WriteFileAtomic(fsys, path, data, FileMode); err != nil {
		return errors.Wrapf(err, errors.ErrConfigSave, "cannot write %s", path).WithDetail("path", path)
	}

	c.path = path
	c.loaded = true
	logger := logging.GetLogger("config")
	logger.Debug().Str("path", path).Msg("Config saved")
	return nil
}
