// Package github talks to the GitHub REST API and orchestrates topic sync:
// enumerate a repository's markdown files, group them into topics through the
// LLM, and replace the stored topic set in one shot.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound covers missing repositories, branches and files (HTTP 404).
	ErrNotFound = errors.New("github: not found")
	// ErrAccessDenied covers bad credentials and rate limiting (HTTP 401/403).
	ErrAccessDenied = errors.New("github: access denied")
	// ErrTimeout covers request deadline expiry.
	ErrTimeout = errors.New("github: request timed out")
)

const defaultBaseURL = "https://api.github.com"

// Client is a minimal GitHub REST v3 client. The token is optional; without
// it only public repositories are reachable and the rate limit is low.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client with a 30 second request timeout
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
	}
}

// TreeEntry is one node of a repository tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type treeResponse struct {
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListTree returns the full recursive tree of the repository's default
// branch, trying main first and falling back to master.
func (c *Client) ListTree(ctx context.Context, owner, repo string) ([]TreeEntry, error) {
	for _, branch := range []string{"main", "master"} {
		path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, branch)
		var resp treeResponse
		err := c.get(ctx, path, &resp)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return resp.Tree, nil
	}
	return nil, fmt.Errorf("%w: %s/%s has neither main nor master", ErrNotFound, owner, repo)
}

// GetFileContent fetches one file through the contents API and decodes it
func (c *Client) GetFileContent(ctx context.Context, owner, repo, filePath string) (string, error) {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(filePath))
	var resp contentsResponse
	if err := c.get(ctx, apiPath, &resp); err != nil {
		return "", err
	}
	if resp.Encoding != "base64" {
		return resp.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return string(decoded), nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAccessDenied, path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github returned %d for %s: %s", resp.StatusCode, path, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
