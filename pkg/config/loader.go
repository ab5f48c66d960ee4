package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shaneholloman/dotstate/pkg/backup"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
)

// EnvPrefix marks variables that override config keys
const EnvPrefix = "DOTSTATE_"

// reservedEnv are DOTSTATE_ variables with their own meaning
var reservedEnv = map[string]bool{
	paths.EnvConfigFile:  true,
	paths.EnvConfigDir:   true,
	paths.EnvDataDir:     true,
	paths.EnvStateDir:    true,
	EnvGitHubToken:       true,
	"DOTSTATE_GIT_TOKEN": true,
}

// LoadOptions controls Load
type LoadOptions struct {
	// Path of the config file; empty means paths.ConfigFile()
	Path string
	// Overrides are applied last, keyed like the file ("repo_path")
	Overrides map[string]interface{}
	// SkipEnv ignores DOTSTATE_* variables
	SkipEnv bool
}

// Load reads the layered configuration. A missing file is not an error;
// Exists reports whether one was found.
func Load(opts LoadOptions) (*Config, error) {
	logger := logging.GetLogger("config")

	path := opts.Path
	if path == "" {
		path = paths.ConfigFile()
	}

	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(defaults{}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to load embedded defaults")
	}

	// 2. User file
	loaded := false
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", path).
				WithDetail("path", path)
		}
		loaded = true
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read %s", path).WithDetail("path", path)
	}

	// 3. Environment
	if !opts.SkipEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
		}
	}

	// 4. Caller overrides
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				emptyTableToNilHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		if errors.GetErrorCode(err) == errors.ErrConfigParse {
			return nil, err
		}
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid configuration in %s", path).
			WithDetail("path", path)
	}
	cfg.path = path
	cfg.loaded = loaded

	if migrated := postProcessConfig(&cfg); migrated && loaded {
		if _, err := backup.New(filesystem.NewOS()).Backup(path, true); err != nil {
			logger.Warn().Err(err).Msg("Could not back up config before migration")
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		logger.Info().Int("version", cfg.Version).Msg("Config migrated")
	}

	logger.Debug().Str("path", path).Bool("exists", loaded).Str("repo", cfg.RepoPath).Msg("Config loaded")
	return &cfg, nil
}

// envKey maps DOTSTATE_GITHUB__OWNER to github.owner. Reserved variables
// map to "" and are dropped.
func envKey(s string) string {
	if reservedEnv[s] {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// emptyTableToNilHookFunc keeps an empty [github] table from producing a
// non-nil GitHubConfig.
func emptyTableToNilHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(&GitHubConfig{}) || from.Kind() != reflect.Map {
			return data, nil
		}
		if m, ok := data.(map[string]interface{}); ok && len(m) == 0 {
			return nil, nil
		}
		return data, nil
	}
}

// postProcessConfig fills derived defaults and upgrades old schemas. It
// reports whether a migration changed the version.
func postProcessConfig(cfg *Config) bool {
	migrated := false
	if cfg.Version < CurrentVersion {
		cfg.Version = CurrentVersion
		migrated = true
	}

	if cfg.RepoMode == "" {
		cfg.RepoMode = ModeGitHub
	}
	if cfg.RepoName == "" {
		cfg.RepoName = DefaultRepoName
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	if cfg.Theme == "" {
		cfg.Theme = "dark"
	}

	if cfg.RepoPath == "" {
		cfg.RepoPath = paths.DefaultStorageRoot()
	} else {
		cfg.RepoPath = paths.ExpandHome(cfg.RepoPath)
	}

	if cfg.ActiveProfile == "" {
		cfg.ActiveProfile = firstProfile(cfg.RepoPath)
	}
	return migrated
}

// firstProfile names the first manifest profile when storage exists
func firstProfile(root string) string {
	if _, err := os.Stat(root); err != nil {
		return ""
	}
	m, err := manifest.NewStore(filesystem.NewOS(), root).Load()
	if err != nil || len(m.Profiles) == 0 {
		return ""
	}
	return m.Profiles[0].Name
}
