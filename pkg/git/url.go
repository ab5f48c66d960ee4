package git

import (
	"net/url"
	"strings"
)

// NormalizeRemoteURL reduces a remote URL to a comparable host/path key:
// scheme, credentials, a trailing slash, and a trailing .git are dropped, and
// the result is lowercased. scp-style git@host:owner/repo maps onto the same
// key as the https form.
func NormalizeRemoteURL(raw string) string {
	s := strings.TrimSpace(raw)

	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = u.Host + u.Path
	} else if at := strings.Index(s, "@"); at >= 0 && strings.Contains(s[at:], ":") && !strings.Contains(s, "://") {
		// user@host:owner/repo
		s = strings.Replace(s[at+1:], ":", "/", 1)
	} else if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if at := strings.LastIndex(s, "@"); at >= 0 {
			s = s[at+1:]
		}
	}

	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimRight(s, "/")
	return strings.ToLower(s)
}

// SameRemote reports whether two remote URLs name the same repository
func SameRemote(a, b string) bool {
	return NormalizeRemoteURL(a) == NormalizeRemoteURL(b)
}

// StripCredentials removes any user:password@ part so a URL can be stored or
// logged safely.
func StripCredentials(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.User == nil || u.Scheme == "" {
		return raw
	}
	u.User = nil
	return u.String()
}
