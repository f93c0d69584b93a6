package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/models"
)

// SQLiteStorage implements PosterStore using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS posters (
		movie_id INTEGER PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		available INTEGER NOT NULL,
		fetched_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posters_fetched_at ON posters(fetched_at);
	`
	_, err := db.Exec(schema)
	return err
}

// GetPoster returns the stored poster for movieID, or ErrNotFound.
func (s *SQLiteStorage) GetPoster(ctx context.Context, movieID int64) (*models.Poster, error) {
	var p models.Poster
	err := s.db.QueryRowContext(ctx,
		`SELECT movie_id, url, available, fetched_at FROM posters WHERE movie_id = ?`, movieID,
	).Scan(&p.MovieID, &p.URL, &p.Available, &p.FetchedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, movieID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPoster inserts or replaces the poster for poster.MovieID. A zero FetchedAt is set to now.
func (s *SQLiteStorage) PutPoster(ctx context.Context, poster *models.Poster) error {
	if poster.FetchedAt.IsZero() {
		poster.FetchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posters (movie_id, url, available, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(movie_id) DO UPDATE SET
		   url = excluded.url,
		   available = excluded.available,
		   fetched_at = excluded.fetched_at`,
		poster.MovieID, poster.URL, poster.Available, poster.FetchedAt.UTC(),
	)
	return err
}

// DeleteExpiredPosters removes posters fetched before olderThan and returns how many were removed.
func (s *SQLiteStorage) DeleteExpiredPosters(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posters WHERE fetched_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountPosters returns the number of stored posters.
func (s *SQLiteStorage) CountPosters(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posters`).Scan(&count)
	return count, err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
