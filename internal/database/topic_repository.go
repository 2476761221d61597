package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/studyagent/pkg/models"
)

// TopicRepository handles database operations for topics
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a new repository instance
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// ReplaceForRepository swaps the repository's whole topic set in one
// transaction: delete everything, insert the new set. Existing topic IDs die
// with the old set.
func (r *TopicRepository) ReplaceForRepository(ctx context.Context, repositoryID int64, topics []models.Topic) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin topic replacement: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := tx.Rebind("DELETE FROM topics WHERE repository_id = ?")
	if _, err := tx.ExecContext(ctx, deleteQuery, repositoryID); err != nil {
		return fmt.Errorf("failed to clear topics for repository %d: %w", repositoryID, err)
	}

	insertQuery := tx.Rebind(`
		INSERT INTO topics (repository_id, title, content, content_hash, file_paths, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, t := range topics {
		if _, err := tx.ExecContext(ctx, insertQuery, repositoryID, t.Title, t.Content, t.ContentHash, t.FilePaths, t.LastSyncedAt); err != nil {
			return fmt.Errorf("failed to insert topic %q: %w", t.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit topic replacement: %w", err)
	}
	return nil
}

// GetByID returns a topic by ID, or nil
func (r *TopicRepository) GetByID(ctx context.Context, id int64) (*models.Topic, error) {
	var topic models.Topic
	query := r.db.Rebind("SELECT * FROM topics WHERE id = ?")
	err := r.db.GetContext(ctx, &topic, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic by ID: %w", err)
	}
	return &topic, nil
}

// GetByRepository returns the repository's topics in insertion order
func (r *TopicRepository) GetByRepository(ctx context.Context, repositoryID int64) ([]models.Topic, error) {
	var topics []models.Topic
	query := r.db.Rebind("SELECT * FROM topics WHERE repository_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &topics, query, repositoryID); err != nil {
		return nil, fmt.Errorf("failed to get topics for repository %d: %w", repositoryID, err)
	}
	return topics, nil
}

// GetByUser returns every topic across the user's active repositories
func (r *TopicRepository) GetByUser(ctx context.Context, userID int64) ([]models.Topic, error) {
	var topics []models.Topic
	query := r.db.Rebind(`
		SELECT t.* FROM topics t
		JOIN repositories r ON t.repository_id = r.id
		WHERE r.user_id = ? AND r.is_active = true
		ORDER BY t.id`)
	if err := r.db.SelectContext(ctx, &topics, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get topics for user %d: %w", userID, err)
	}
	return topics, nil
}

// TitlesByID resolves topic IDs to titles, preserving the input order.
// Vanished IDs are silently dropped.
func (r *TopicRepository) TitlesByID(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT id, title FROM topics WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build title query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []struct {
		ID    int64  `db:"id"`
		Title string `db:"title"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get topic titles: %w", err)
	}

	byID := make(map[int64]string, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.Title
	}
	var titles []string
	for _, id := range ids {
		if title, ok := byID[id]; ok {
			titles = append(titles, title)
		}
	}
	return titles, nil
}
