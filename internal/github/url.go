package github

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRepoURL is returned when a repository URL cannot be reduced to an
// owner/name pair.
var ErrInvalidRepoURL = errors.New("invalid GitHub repository URL")

// ParseRepoURL extracts owner and repository name from the URL forms users
// paste into chat: https://github.com/owner/repo, github.com/owner/repo,
// git@github.com:owner/repo, each with or without a .git suffix.
func ParseRepoURL(raw string) (owner, name string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", ErrInvalidRepoURL
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	if strings.ContainsAny(parts[0], " :@") || strings.ContainsAny(parts[1], " :@") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	return parts[0], parts[1], nil
}
