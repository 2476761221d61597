package models

import "time"

// Topic represents a studyable unit of content extracted from a repository
type Topic struct {
	ID           int64     `json:"id" db:"id"`
	RepositoryID int64     `json:"repository_id" db:"repository_id"`
	Title        string    `json:"title" db:"title"`
	Content      string    `json:"content" db:"content"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	FilePaths    string    `json:"file_paths" db:"file_paths"` // JSON-encoded list of source paths
	LastSyncedAt time.Time `json:"last_synced_at" db:"last_synced_at"`
}

// TopicGrouping is the LLM's proposal for one topic: a title plus the
// repository files that should make up its content.
type TopicGrouping struct {
	Title string   `json:"title"`
	Files []string `json:"files"`
}
