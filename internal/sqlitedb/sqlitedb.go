// Package sqlitedb provides a SQLite article store for local runs and tests.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/jonathan/article-archiver/internal/store"
	"github.com/jonathan/article-archiver/internal/types"
)

const (
	dateLayout = "2006-01-02"
	// Fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// DB is a SQLite-backed store.Store.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and initialises the schema.
// path may be a plain file path or a file: URI.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite3", withPragmas(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps inserts serialised within the process.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_files (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		link TEXT NOT NULL UNIQUE,
		date_published TEXT,
		content TEXT,
		snapshot_file TEXT REFERENCES snapshot_files (name),
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Exists reports whether an article with link is stored.
func (s *DB) Exists(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE link = ?)`, link,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return exists, nil
}

// Save inserts a new article and, when given, its snapshot in one transaction.
func (s *DB) Save(ctx context.Context, stub types.CandidateStub, content *string, snapshot []byte) (*types.StoredArticle, error) {
	if err := store.ValidateStub(stub); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	if len(snapshot) > 0 {
		if name, err = store.NewSnapshotName(); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_files (name, data, created_at) VALUES (?, ?, ?)`,
			name, snapshot, formatTime(time.Now()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to store snapshot: %w", err)
		}
	}

	a := store.NewArticle(stub, content, name)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles (id, title, link, date_published, content, snapshot_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.Title, a.Link, formatDate(a.DatePublished), a.Content, a.SnapshotFile, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateLink, stub.Link)
		}
		return nil, fmt.Errorf("failed to insert article: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit article: %w", err)
	}
	return &a, nil
}

// List returns all articles, newest publication date first.
func (s *DB) List(ctx context.Context) ([]types.StoredArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, link, date_published, content, snapshot_file, created_at
		 FROM articles
		 ORDER BY date_published IS NULL, date_published DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]types.StoredArticle, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// Snapshot returns the blob stored under name.
func (s *DB) Snapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshot_files WHERE name = ?`, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func scanArticle(rows *sql.Rows) (*types.StoredArticle, error) {
	var (
		a                     types.StoredArticle
		id, createdAt         string
		datePublished         sql.NullString
		content, snapshotFile sql.NullString
	)
	if err := rows.Scan(&id, &a.Title, &a.Link, &datePublished, &content, &snapshotFile, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid article id %q: %w", id, err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if datePublished.Valid {
		d, err := time.Parse(dateLayout, datePublished.String)
		if err != nil {
			return nil, fmt.Errorf("invalid date_published %q: %w", datePublished.String, err)
		}
		a.DatePublished = &d
	}
	if content.Valid {
		a.Content = &content.String
	}
	if snapshotFile.Valid {
		a.SnapshotFile = &snapshotFile.String
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func formatDate(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Format(dateLayout)
}

var _ store.Store = (*DB)(nil)
