package models

import "time"

// Repository represents a tracked GitHub repository
type Repository struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	RepoURL      string     `json:"repo_url" db:"repo_url"`
	RepoOwner    string     `json:"repo_owner" db:"repo_owner"`
	RepoName     string     `json:"repo_name" db:"repo_name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastSyncedAt *time.Time `json:"last_synced_at" db:"last_synced_at"`
}

// FullName returns the owner/name form used in messages and API calls
func (r *Repository) FullName() string {
	return r.RepoOwner + "/" + r.RepoName
}
