package dotstate

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Keep dotfiles in git and link them into place"
	MsgActivateShort   = "Link the active profile into your home directory"
	MsgDeactivateShort = "Replace managed links with regular copies"
	MsgAddShort        = "Start syncing a file or directory"
	MsgRemoveShort     = "Stop syncing a file and put it back in place"
	MsgListShort       = "List synced files and their link state"
	MsgScanShort       = "Show known dotfiles in your home directory"
	MsgStatusShort     = "Show uncommitted changes and remote divergence"
	MsgSyncShort       = "Commit, pull and push storage"
	MsgDoctorShort     = "Check storage, manifest and links for problems"
	MsgCommonShort     = "Share paths between every profile"
	MsgCommonAddShort  = "Move a synced path from profiles into common"
	MsgCommonRmShort   = "Move a path out of common into the active profile"
	MsgSetupShort      = "Create or clone the storage repository"
	MsgVersionShort    = "Print version information"

	MsgProfileShort       = "Manage profiles"
	MsgProfileListShort   = "List profiles"
	MsgProfileCreateShort = "Create a profile"
	MsgProfileRenameShort = "Rename a profile"
	MsgProfileDeleteShort = "Delete a profile that is not active"
	MsgProfileSwitchShort = "Make another profile active"

	// Flag descriptions
	MsgFlagVerbose     = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig      = "Config file (default $XDG_CONFIG_HOME/dotstate/config.toml)"
	MsgFlagRepoPath    = "Storage directory for this run"
	MsgFlagProfile     = "Active profile for this run"
	MsgFlagOutput      = "Output format: auto, term, text, json or yaml"
	MsgFlagCommon      = "Share the file with every profile"
	MsgFlagTo          = "Store the file for another profile without linking it"
	MsgFlagAll         = "Include files of inactive profiles"
	MsgFlagForce       = "Ignore the cached snapshot"
	MsgFlagOffline     = "Do not fetch from the remote"
	MsgFlagWatch       = "Keep running and report whenever storage changes"
	MsgFlagMessage     = "Commit message (generated from the changes by default)"
	MsgFlagToken       = "GitHub token with the repo scope"
	MsgFlagRepo        = "Repository name"
	MsgFlagPrivate     = "Create the repository as private"
	MsgFlagDescription = "Profile description"
	MsgFlagCopyFrom    = "Copy files and packages from an existing profile"
	MsgFlagFix         = "Repair the activation flag and missing links, then check again"
	MsgFlagCleanup     = "Profiles to drop the path from (comma separated)"

	// Status messages
	MsgVersionFormat = "dotstate version %s\n  commit: %s\n  built:  %s\n"
	MsgDoctorFailed  = "doctor found %d error(s)"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/add-long.txt
	msgAddLongRaw string
	MsgAddLong    = strings.TrimSpace(msgAddLongRaw)

	//go:embed msgs/add-example.txt
	msgAddExampleRaw string
	MsgAddExample    = strings.TrimRight(msgAddExampleRaw, "\n")

	//go:embed msgs/activate-long.txt
	msgActivateLongRaw string
	MsgActivateLong    = strings.TrimSpace(msgActivateLongRaw)

	//go:embed msgs/status-long.txt
	msgStatusLongRaw string
	MsgStatusLong    = strings.TrimSpace(msgStatusLongRaw)

	//go:embed msgs/sync-long.txt
	msgSyncLongRaw string
	MsgSyncLong    = strings.TrimSpace(msgSyncLongRaw)

	//go:embed msgs/setup-long.txt
	msgSetupLongRaw string
	MsgSetupLong    = strings.TrimSpace(msgSetupLongRaw)

	//go:embed msgs/profile-long.txt
	msgProfileLongRaw string
	MsgProfileLong    = strings.TrimSpace(msgProfileLongRaw)

	//go:embed msgs/switch-long.txt
	msgSwitchLongRaw string
	MsgSwitchLong    = strings.TrimSpace(msgSwitchLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)
