package paths

import (
	"strings"
	"unicode"

	"github.com/shaneholloman/dotstate/pkg/errors"
)

// MaxProfileNameLength is the longest accepted profile name
const MaxProfileNameLength = 64

// reservedNames cannot be used as profile names (compared case-insensitively);
// they collide with the common scope or with directories tools create in a repo.
var reservedNames = []string{
	CommonDirName,
	"backup",
	"temp",
	".git",
	"node_modules",
	"target",
	"build",
}

func isProfileNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

// IsReservedName reports whether name collides with a reserved storage directory.
func IsReservedName(name string) bool {
	for _, reserved := range reservedNames {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}

// SanitizeProfileName makes free-form input usable as a profile name:
// whitespace becomes '-', other invalid characters become '_', and the
// result is cut to MaxProfileNameLength. The result still has to pass
// ValidateProfileName.
func SanitizeProfileName(name string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case isProfileNameChar(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	if len(out) > MaxProfileNameLength {
		out = out[:MaxProfileNameLength]
	}
	return out
}

// ValidateProfileName checks name against the naming rules and against the
// names already in use. Uniqueness is case-insensitive because profile
// directories may live on case-insensitive filesystems.
func ValidateProfileName(name string, existing []string) error {
	if name == "" {
		return errors.Validation("profile name cannot be empty")
	}
	if len(name) > MaxProfileNameLength {
		return errors.Validation("profile name is too long (max %d characters)", MaxProfileNameLength)
	}
	if name == "." || name == ".." {
		return errors.Validation("profile name cannot be '.' or '..'")
	}
	if strings.HasPrefix(name, ".") {
		return errors.Validation("profile name cannot start with a dot")
	}
	for _, r := range name {
		if !isProfileNameChar(r) {
			return errors.Validation("profile name %q contains invalid character %q (use letters, digits, '-' and '_')", name, r)
		}
	}
	if IsReservedName(name) {
		return errors.Validation("%q is a reserved name", name)
	}
	for _, other := range existing {
		if strings.EqualFold(name, other) {
			return errors.Newf(errors.ErrProfileExists, "a profile named %q already exists", other).
				WithDetail("profile", other)
		}
	}
	return nil
}
