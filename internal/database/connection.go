// Package database provides sqlx-backed repositories over SQLite or
// PostgreSQL. Every repository takes its *sqlx.DB explicitly; there is no
// package-level connection.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the database selected by dbType ("sqlite" or "postgres"),
// applies connection settings and initializes the schema.
func Connect(dbType, sqlitePath, postgresURL string) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	switch dbType {
	case "sqlite":
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sqlx.Connect("sqlite3", sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case "postgres":
		db, err = sqlx.Connect("postgres", postgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates the tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []struct {
		name string
		ddl  string
	}{
		{"users", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS users (
				id %s,
				telegram_id BIGINT UNIQUE NOT NULL,
				username TEXT,
				first_name TEXT,
				last_name TEXT,
				timezone TEXT DEFAULT 'UTC',
				is_active BOOLEAN DEFAULT true,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`, idColumn)},
		{"repositories", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS repositories (
				id %s,
				user_id BIGINT NOT NULL,
				repo_url TEXT NOT NULL,
				repo_owner TEXT NOT NULL,
				repo_name TEXT NOT NULL,
				is_active BOOLEAN DEFAULT true,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				last_synced_at TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				UNIQUE(user_id, repo_owner, repo_name)
			)`, idColumn)},
		{"topics", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS topics (
				id %s,
				repository_id BIGINT NOT NULL,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				file_paths TEXT NOT NULL DEFAULT '[]',
				last_synced_at TIMESTAMP NOT NULL,
				FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE
			)`, idColumn)},
		{"study_sessions", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS study_sessions (
				id %s,
				user_id BIGINT NOT NULL,
				topic_id BIGINT NOT NULL,
				session_type TEXT NOT NULL DEFAULT 'manual',
				status TEXT NOT NULL DEFAULT 'in_progress',
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (topic_id) REFERENCES topics(id)
			)`, idColumn)},
		{"assessments", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS assessments (
				id %s,
				session_id BIGINT NOT NULL,
				question TEXT NOT NULL,
				correct_answer TEXT NOT NULL,
				user_answer TEXT,
				score REAL,
				is_correct BOOLEAN,
				feedback TEXT,
				answered_at TIMESTAMP,
				FOREIGN KEY (session_id) REFERENCES study_sessions(id) ON DELETE CASCADE
			)`, idColumn)},
		{"performance_metrics", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS performance_metrics (
				id %s,
				user_id BIGINT NOT NULL,
				topic_id BIGINT NOT NULL,
				total_sessions INTEGER NOT NULL DEFAULT 0,
				total_questions INTEGER NOT NULL DEFAULT 0,
				total_correct INTEGER NOT NULL DEFAULT 0,
				average_score REAL NOT NULL DEFAULT 0,
				last_studied_at TIMESTAMP,
				next_review_at TIMESTAMP,
				retention_score REAL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				UNIQUE(user_id, topic_id)
			)`, idColumn)},
		{"schedule_configs", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS schedule_configs (
				id %s,
				user_id BIGINT UNIQUE NOT NULL,
				is_enabled BOOLEAN DEFAULT true,
				preferred_time TEXT NOT NULL DEFAULT '09:00',
				days_of_week TEXT NOT NULL DEFAULT '',
				questions_per_session INTEGER NOT NULL DEFAULT 5,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`, idColumn)},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_topics_repository ON topics(repository_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_user ON study_sessions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_assessments_session ON assessments(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_metrics_next_review ON performance_metrics(next_review_at)",
	}
	for _, ddl := range indexes {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
