// pkg/commands/commands_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (testutil.EnvIsolated)
// PURPOSE: Test the file and profile commands together with their config side effects

package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/doctor"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, active string, activated bool, profiles ...string) (*testutil.TestEnvironment, *commands.Env) {
	t.Helper()
	tenv := testutil.NewTestEnvironment(t, testutil.EnvIsolated)

	m := manifest.Default()
	for _, p := range profiles {
		m.Profiles = append(m.Profiles, manifest.Profile{Name: p, SyncedFiles: []string{}})
		require.NoError(t, tenv.FS.MkdirAll(filepath.Join(tenv.StorageRoot, p), 0755))
	}
	tenv.SaveManifest(m)

	cfg := &config.Config{
		RepoMode:         config.ModeGitHub,
		RepoPath:         tenv.StorageRoot,
		DefaultBranch:    "main",
		ActiveProfile:    active,
		ProfileActivated: activated,
	}
	cfg.SetPath(filepath.Join(tenv.ConfigDir, "dotstate", "config.toml"))

	env, err := commands.NewEnv(cfg, commands.WithFS(tenv.FS), commands.WithHome(tenv.HomeDir))
	require.NoError(t, err)
	return tenv, env
}

func TestAdd_ActiveProfile(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	tenv.WriteHome(".bashrc", "export A=1\n")

	res, err := commands.Add(env, commands.AddOptions{Path: "~/.bashrc"})
	require.NoError(t, err)
	assert.Equal(t, ".bashrc", res.Path)
	assert.Equal(t, "work", res.Scope)
	assert.True(t, res.Linked)
	assert.False(t, res.Custom)

	tenv.AssertSymlinkTo(tenv.HomePath(".bashrc"), tenv.StoragePath("work", ".bashrc"))
	assert.Equal(t, []string{".bashrc"}, tenv.LoadManifest().Files("work"))

	again, err := commands.Add(env, commands.AddOptions{Path: ".bashrc"})
	require.NoError(t, err)
	assert.Contains(t, again.String(), "already synced")
}

func TestAdd_CommonAndCustom(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	tenv.WriteHome(".myrc", "x\n")

	res, err := commands.Add(env, commands.AddOptions{Path: ".myrc", Common: true})
	require.NoError(t, err)
	assert.Equal(t, manifest.CommonScope, res.Scope)
	assert.True(t, res.Custom)

	tenv.AssertSymlinkTo(tenv.HomePath(".myrc"), tenv.StoragePath(manifest.CommonScope, ".myrc"))
	assert.Equal(t, []string{".myrc"}, env.Config.CustomFiles)
	_, err = os.Stat(env.Config.Path())
	assert.NoError(t, err, "config should have been saved")
}

func TestAdd_InactiveProfileStoresCopy(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work", "home")
	tenv.WriteHome(".vimrc", "set nu\n")

	res, err := commands.Add(env, commands.AddOptions{Path: ".vimrc", Profile: "home"})
	require.NoError(t, err)
	assert.False(t, res.Linked)
	tenv.AssertRegular(tenv.HomePath(".vimrc"))
	assert.Equal(t, "set nu\n", tenv.ReadFile(tenv.StoragePath("home", ".vimrc")))
}

func TestAdd_Errors(t *testing.T) {
	_, env := newEnv(t, "", false, "work")

	_, err := commands.Add(env, commands.AddOptions{Path: ".bashrc"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotConfigured))

	_, err = commands.Add(env, commands.AddOptions{Path: ""})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))

	_, err = commands.Add(env, commands.AddOptions{Path: ".x", Common: true, Profile: "work"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestRequireStorage(t *testing.T) {
	tenv, env := newEnv(t, "work", false, "work")
	require.NoError(t, os.RemoveAll(tenv.StorageRoot))

	_, err := commands.List(env, commands.ListOptions{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotConfigured))
}

func TestRemove(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	tenv.WriteHome(".zshrc", "z\n")
	_, err := commands.Add(env, commands.AddOptions{Path: ".zshrc"})
	require.NoError(t, err)

	res, err := commands.Remove(env, commands.RemoveOptions{Path: ".zshrc"})
	require.NoError(t, err)
	assert.Equal(t, ".zshrc", res.Path)
	tenv.AssertRegular(tenv.HomePath(".zshrc"))
	assert.Equal(t, "z\n", tenv.ReadFile(tenv.HomePath(".zshrc")))
	tenv.AssertMissing(tenv.StoragePath("work", ".zshrc"))

	res, err = commands.Remove(env, commands.RemoveOptions{Path: ".zshrc"})
	require.NoError(t, err)
	assert.Contains(t, res.String(), "not synced")
}

func TestList_States(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work", "home")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".a", ".b", ".c"}
	m.Profile("home").SyncedFiles = []string{".d"}
	tenv.SaveManifest(m)
	for _, rel := range []string{".a", ".b", ".c"} {
		tenv.WriteStorage("work", rel, rel)
	}
	tenv.WriteStorage("home", ".d", ".d")

	require.NoError(t, os.Symlink(tenv.StoragePath("work", ".a"), tenv.HomePath(".a")))
	tenv.WriteHome(".c", "edited in place")

	res, err := commands.List(env, commands.ListOptions{})
	require.NoError(t, err)
	states := map[string]string{}
	for _, e := range res.Entries {
		states[e.Path] = e.State
	}
	assert.Equal(t, map[string]string{
		".a": commands.StateLinked,
		".b": commands.StateMissing,
		".c": commands.StateDesynced,
	}, states)

	all, err := commands.List(env, commands.ListOptions{All: true})
	require.NoError(t, err)
	require.Len(t, all.Entries, 4)
	assert.Equal(t, commands.StateStored, all.Entries[3].State)

	table := res.Table()
	assert.Equal(t, "Profile work", table.Title)
	assert.Len(t, table.Rows, 3)
}

func TestScan_IncludesCustomFiles(t *testing.T) {
	tenv, env := newEnv(t, "work", false, "work")
	tenv.WriteHome(".bashrc", "b")
	tenv.WriteHome(".tool/conf", "c")
	env.Config.CustomFiles = []string{".tool/conf"}

	res, err := commands.Scan(env)
	require.NoError(t, err)
	var found []string
	for _, c := range res.Candidates {
		found = append(found, c.Path)
	}
	assert.Contains(t, found, ".bashrc")
	assert.Contains(t, found, ".tool/conf")
}

func TestActivateDeactivate(t *testing.T) {
	tenv, env := newEnv(t, "work", false, "work")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".gitconfig"}
	tenv.SaveManifest(m)
	tenv.WriteStorage("work", ".gitconfig", "[user]\n")

	res, err := commands.Activate(env)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Linked)
	assert.True(t, env.Config.ProfileActivated)
	tenv.AssertSymlinkTo(tenv.HomePath(".gitconfig"), tenv.StoragePath("work", ".gitconfig"))

	again, err := commands.Activate(env)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Linked)
	assert.Equal(t, 1, again.Skipped)

	off, err := commands.Deactivate(env)
	require.NoError(t, err)
	assert.Equal(t, 1, off.Restored)
	assert.False(t, env.Config.ProfileActivated)
	tenv.AssertRegular(tenv.HomePath(".gitconfig"))
}

func TestProfileCreate_FirstBecomesActive(t *testing.T) {
	_, env := newEnv(t, "", false)

	res, err := commands.ProfileCreate(env, commands.ProfileCreateOptions{Name: "My Laptop"})
	require.NoError(t, err)
	assert.Equal(t, "My-Laptop", res.Name)
	assert.Equal(t, "My-Laptop", env.Config.ActiveProfile)

	second, err := commands.ProfileCreate(env, commands.ProfileCreateOptions{Name: "server"})
	require.NoError(t, err)
	assert.Equal(t, "server", second.Name)
	assert.Equal(t, "My-Laptop", env.Config.ActiveProfile)

	list, err := commands.ProfileList(env)
	require.NoError(t, err)
	require.Len(t, list.Profiles, 2)
	assert.True(t, list.Profiles[0].Active)
	assert.Equal(t, "*", list.Table().Rows[0][0])
}

func TestProfileRename_FollowsActive(t *testing.T) {
	_, env := newEnv(t, "work", false, "work", "home")

	res, err := commands.ProfileRename(env, commands.ProfileRenameOptions{Old: "work", New: "office"})
	require.NoError(t, err)
	assert.Equal(t, "office", res.Name)
	assert.Equal(t, "office", env.Config.ActiveProfile)

	_, err = commands.ProfileRename(env, commands.ProfileRenameOptions{Old: "home", New: "house"})
	require.NoError(t, err)
	assert.Equal(t, "office", env.Config.ActiveProfile)
}

func TestProfileDelete_RefusesActive(t *testing.T) {
	_, env := newEnv(t, "work", false, "work", "home")

	_, err := commands.ProfileDelete(env, "work")
	assert.True(t, errors.IsErrorCode(err, errors.ErrProfileDeletionOfActive))

	_, err = commands.ProfileDelete(env, "home")
	require.NoError(t, err)
	list, err := commands.ProfileList(env)
	require.NoError(t, err)
	assert.Len(t, list.Profiles, 1)
}

func TestProfileSwitch_NotActivated(t *testing.T) {
	tenv, env := newEnv(t, "work", false, "work", "home")

	res, err := commands.ProfileSwitch(env, "home")
	require.NoError(t, err)
	assert.False(t, res.Linked)
	assert.Equal(t, "home", env.Config.ActiveProfile)
	entries, err := os.ReadDir(tenv.HomeDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = commands.ProfileSwitch(env, "missing")
	assert.True(t, errors.IsErrorCode(err, errors.ErrProfileNotFound))
	assert.Equal(t, "home", env.Config.ActiveProfile)
}

func TestProfileSwitch_Activated(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work", "home")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".only-work", ".shared"}
	m.Profile("home").SyncedFiles = []string{".shared", ".only-home"}
	tenv.SaveManifest(m)
	for _, rel := range []string{".only-work", ".shared"} {
		tenv.WriteStorage("work", rel, "work"+rel)
	}
	for _, rel := range []string{".shared", ".only-home"} {
		tenv.WriteStorage("home", rel, "home"+rel)
	}
	_, err := commands.Activate(env)
	require.NoError(t, err)

	res, err := commands.ProfileSwitch(env, "home")
	require.NoError(t, err)
	assert.True(t, res.Linked)
	assert.Equal(t, []string{".only-work"}, res.Removed)
	assert.Equal(t, []string{".only-home"}, res.Created)
	assert.Equal(t, []string{".shared"}, res.Retargeted)
	assert.Equal(t, "home", env.Config.ActiveProfile)

	tenv.AssertRegular(tenv.HomePath(".only-work"))
	tenv.AssertSymlinkTo(tenv.HomePath(".shared"), tenv.StoragePath("home", ".shared"))
	tenv.AssertSymlinkTo(tenv.HomePath(".only-home"), tenv.StoragePath("home", ".only-home"))

	same, err := commands.ProfileSwitch(env, "home")
	require.NoError(t, err)
	assert.Contains(t, same.String(), "already the active profile")
}

func TestDoctor(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".profile"}
	tenv.SaveManifest(m)
	tenv.WriteStorage("work", ".profile", "p")

	result, err := commands.Doctor(context.Background(), env, commands.DoctorOptions{})
	require.NoError(t, err)
	assert.Contains(t, result.Markdown(), `profile "work" is marked activated but none of its 1 link(s) exist`)
	assert.Empty(t, result.Fixed)
	assert.True(t, env.Config.ProfileActivated, "nothing changes without --fix")
}

func TestDoctor_FixRelinks(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".profile", ".zshrc"}
	tenv.SaveManifest(m)
	tenv.WriteStorage("work", ".profile", "p")
	require.NoError(t, os.Symlink(tenv.WriteStorage("work", ".zshrc", "z"), tenv.HomePath(".zshrc")))

	before, err := commands.Doctor(context.Background(), env, commands.DoctorOptions{})
	require.NoError(t, err)
	assert.Equal(t, []doctor.Fix{doctor.FixRelink}, before.Fixes())
	tenv.AssertMissing(tenv.HomePath(".profile"))

	result, err := commands.Doctor(context.Background(), env, commands.DoctorOptions{Fix: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"re-activated work: 1 linked"}, result.Fixed)
	assert.Empty(t, result.Fixes())
	assert.Zero(t, result.Count(doctor.Error))
	assert.Contains(t, result.Markdown(), "## Repairs")
	tenv.AssertSymlinkTo(tenv.HomePath(".profile"), tenv.StoragePath("work", ".profile"))
	assert.True(t, env.Config.ProfileActivated)
}

func TestDoctor_FixSyncsActivationFlag(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work")
	m := tenv.LoadManifest()
	m.Profile("work").SyncedFiles = []string{".profile"}
	tenv.SaveManifest(m)
	tenv.WriteStorage("work", ".profile", "p")

	result, err := commands.Doctor(context.Background(), env, commands.DoctorOptions{Fix: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"marked work as not activated"}, result.Fixed)
	assert.Empty(t, result.Fixes())
	assert.False(t, env.Config.ProfileActivated)
	tenv.AssertMissing(tenv.HomePath(".profile"))

	saved, err := config.Load(config.LoadOptions{Path: env.Config.Path(), SkipEnv: true})
	require.NoError(t, err)
	assert.False(t, saved.ProfileActivated)

	// Link by hand: the flag follows home again
	require.NoError(t, os.Symlink(tenv.StoragePath("work", ".profile"), tenv.HomePath(".profile")))
	result, err = commands.Doctor(context.Background(), env, commands.DoctorOptions{Fix: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"marked work as activated"}, result.Fixed)
	assert.True(t, env.Config.ProfileActivated)
}

func TestCommonAddAndRemove(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work", "home")
	tenv.WriteHome(".gitconfig", "[user]\n")
	_, err := commands.Add(env, commands.AddOptions{Path: "~/.gitconfig"})
	require.NoError(t, err)

	res, err := commands.CommonAdd(env, commands.CommonAddOptions{Path: "~/.gitconfig"})
	require.NoError(t, err)
	assert.Equal(t, ".gitconfig", res.Path)
	assert.Equal(t, []string{"work"}, res.From)
	assert.Equal(t, manifest.CommonScope, res.To)

	m := tenv.LoadManifest()
	assert.Equal(t, []string{".gitconfig"}, m.Files(manifest.CommonScope))
	assert.Empty(t, m.Files("work"))
	tenv.AssertMissing(tenv.StoragePath("work", ".gitconfig"))
	tenv.AssertSymlinkTo(tenv.HomePath(".gitconfig"), tenv.StoragePath(manifest.CommonScope, ".gitconfig"))

	back, err := commands.CommonRemove(env, commands.CommonRemoveOptions{Path: ".gitconfig"})
	require.NoError(t, err)
	assert.Equal(t, "work", back.To)
	assert.Contains(t, back.String(), "from common into work")

	m = tenv.LoadManifest()
	assert.Empty(t, m.Files(manifest.CommonScope))
	assert.Equal(t, []string{".gitconfig"}, m.Files("work"))
	tenv.AssertSymlinkTo(tenv.HomePath(".gitconfig"), tenv.StoragePath("work", ".gitconfig"))
}

func TestCommonAdd_CleanupMustNameEveryHolder(t *testing.T) {
	tenv, env := newEnv(t, "work", true, "work", "home")
	tenv.WriteHome(".vimrc", "set nu\n")
	_, err := commands.Add(env, commands.AddOptions{Path: ".vimrc"})
	require.NoError(t, err)
	_, err = commands.Add(env, commands.AddOptions{Path: ".vimrc", Profile: "home"})
	require.NoError(t, err)

	_, err = commands.CommonAdd(env, commands.CommonAddOptions{Path: ".vimrc"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	assert.Equal(t, []string{".vimrc"}, tenv.LoadManifest().Files("home"))

	res, err := commands.CommonAdd(env, commands.CommonAddOptions{Path: ".vimrc", Cleanup: []string{"work", "home"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "home"}, res.From)
	m := tenv.LoadManifest()
	assert.Empty(t, m.Files("home"))
	assert.Equal(t, []string{".vimrc"}, m.Files(manifest.CommonScope))

	_, err = commands.CommonAdd(env, commands.CommonAddOptions{Path: ""})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
