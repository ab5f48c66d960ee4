package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// API is the subset of the client setup depends on
type API interface {
	GetUser(ctx context.Context) (*User, error)
	RepoExists(ctx context.Context, owner, repo string) (bool, error)
	CreateRepo(ctx context.Context, name, description string, private bool) (*Repo, error)
}

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another endpoint (GitHub Enterprise, tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBackOff replaces the retry policy. The factory must return a fresh
// BackOff on every call since implementations are stateful.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = factory
	}
}

// NewClient creates a new GitHub client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultAPIEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = RetryMaxElapsed
	return bo
}

// GetUser returns the account the token belongs to. A rejected token is a
// REMOTE_API error with the status in its details.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RepoExists reports whether owner/repo is visible to the token
func (c *Client) RepoExists(ctx context.Context, owner, repo string) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+repo, nil, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRepo creates a repository for the authenticated user
func (c *Client) CreateRepo(ctx context.Context, name, description string, private bool) (*Repo, error) {
	var repo Repo
	req := createRepoRequest{Name: name, Description: description, Private: private}
	if _, err := c.do(ctx, http.MethodPost, "/user/repos", req, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// do performs one API call with authentication and retry. Transport errors
// and 5xx responses are retried; everything else is final. It returns the
// last HTTP status seen (0 when no response arrived).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	logger := logging.GetLogger("github")

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrInternal, "failed to marshal request body")
		}
	}

	status := 0
	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, errors.ErrInternal, "failed to create request"))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", APIVersion)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(errors.Wrap(ctx.Err(), errors.ErrCancelled, "request cancelled"))
			}
			logger.Debug().Err(err).Str("path", path).Msg("Request failed, retrying")
			return errors.Wrapf(err, errors.ErrRemoteAPI, "%s %s failed", method, path)
		}
		defer func() { _ = resp.Body.Close() }()

		const maxResponseSize = 10 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return errors.Wrapf(err, errors.ErrRemoteAPI, "failed to read response of %s %s", method, path)
		}
		status = resp.StatusCode

		if resp.StatusCode >= 500 {
			logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("Server error, retrying")
			return statusError(method, path, resp.StatusCode, respBody)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(statusError(method, path, resp.StatusCode, respBody))
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(errors.Wrapf(err, errors.ErrRemoteAPI, "failed to parse response of %s %s", method, path))
			}
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	return status, err
}

func statusError(method, path string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	var text string
	switch status {
	case http.StatusUnauthorized:
		text = "the token was rejected (401): check that it is valid and not expired"
	case http.StatusForbidden:
		text = fmt.Sprintf("access denied (403): %s; the token may lack the 'repo' scope", msg)
	default:
		text = fmt.Sprintf("%s %s returned %d: %s", method, path, status, msg)
	}
	return errors.New(errors.ErrRemoteAPI, text).
		WithDetail("status", status).
		WithDetail("path", path)
}
