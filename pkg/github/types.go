// Package github is the small slice of the GitHub REST API that setup needs:
// who owns the token, whether the storage repository exists, and creating it.
package github

import (
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultWebHost is where repositories are cloned from.
	DefaultWebHost = "https://github.com"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// RetryMaxElapsed bounds retries of transient failures.
	RetryMaxElapsed = 30 * time.Second

	// APIVersion is sent as X-GitHub-Api-Version.
	APIVersion = "2022-11-28"
)

// User is the authenticated account
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	ID    int64  `json:"id"`
}

// Repo is a repository as returned by the API
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Owner         User   `json:"owner"`
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

type apiError struct {
	Message string `json:"message"`
}

// CloneURL builds the https clone URL of owner/repo. It never carries a token.
func CloneURL(host, owner, repo string) string {
	if host == "" {
		host = DefaultWebHost
	}
	return host + "/" + owner + "/" + repo + ".git"
}
