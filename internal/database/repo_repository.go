package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/studyagent/pkg/models"
)

// ErrDuplicateRepository is returned when a user adds the same repository twice.
var ErrDuplicateRepository = errors.New("repository already added")

// RepoRepository handles database operations for tracked GitHub repositories
type RepoRepository struct {
	db *sqlx.DB
}

// NewRepoRepository creates a new repository instance
func NewRepoRepository(db *sqlx.DB) *RepoRepository {
	return &RepoRepository{db: db}
}

// Create inserts a tracked repository. The (user, owner, name) pair is unique.
func (r *RepoRepository) Create(ctx context.Context, repo *models.Repository) error {
	existing, err := r.getByName(ctx, repo.UserID, repo.RepoOwner, repo.RepoName)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateRepository
	}

	repo.CreatedAt = time.Now().UTC()
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO repositories (user_id, repo_url, repo_owner, repo_name, is_active, created_at)
			VALUES ($1, $2, $3, $4, true, $5)
			RETURNING id`
		if err := r.db.QueryRowContext(ctx, query, repo.UserID, repo.RepoURL, repo.RepoOwner, repo.RepoName, repo.CreatedAt).Scan(&repo.ID); err != nil {
			return fmt.Errorf("failed to create repository: %w", err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO repositories (user_id, repo_url, repo_owner, repo_name, is_active, created_at)
		VALUES (?, ?, ?, ?, true, ?)`,
		repo.UserID, repo.RepoURL, repo.RepoOwner, repo.RepoName, repo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	repo.ID = id
	return nil
}

// GetByID returns a repository by ID, or nil
func (r *RepoRepository) GetByID(ctx context.Context, id int64) (*models.Repository, error) {
	var repo models.Repository
	query := r.db.Rebind("SELECT * FROM repositories WHERE id = ?")
	err := r.db.GetContext(ctx, &repo, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository by ID: %w", err)
	}
	return &repo, nil
}

// GetByUser returns the user's active repositories, oldest first
func (r *RepoRepository) GetByUser(ctx context.Context, userID int64) ([]models.Repository, error) {
	var repos []models.Repository
	query := r.db.Rebind("SELECT * FROM repositories WHERE user_id = ? AND is_active = true ORDER BY id")
	if err := r.db.SelectContext(ctx, &repos, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get repositories for user %d: %w", userID, err)
	}
	return repos, nil
}

// Delete removes a repository and, through cascade, its topics. The userID
// guard keeps one user from deleting another's repository.
func (r *RepoRepository) Delete(ctx context.Context, id, userID int64) error {
	query := r.db.Rebind("DELETE FROM repositories WHERE id = ? AND user_id = ?")
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete repository %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchSynced stamps last_synced_at after a successful sync
func (r *RepoRepository) TouchSynced(ctx context.Context, id int64, at time.Time) error {
	query := r.db.Rebind("UPDATE repositories SET last_synced_at = ? WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to stamp sync time for repository %d: %w", id, err)
	}
	return nil
}

func (r *RepoRepository) getByName(ctx context.Context, userID int64, owner, name string) (*models.Repository, error) {
	var repo models.Repository
	query := r.db.Rebind("SELECT * FROM repositories WHERE user_id = ? AND repo_owner = ? AND repo_name = ?")
	err := r.db.GetContext(ctx, &repo, query, userID, owner, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up repository: %w", err)
	}
	return &repo, nil
}
