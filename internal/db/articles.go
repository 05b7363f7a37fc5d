package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/article-archiver/internal/store"
	"github.com/jonathan/article-archiver/internal/types"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Exists reports whether an article with link is stored.
func (db *DB) Exists(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE link = $1)`,
		link,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return exists, nil
}

// Save inserts a new article and, when given, its snapshot in one transaction.
func (db *DB) Save(ctx context.Context, stub types.CandidateStub, content *string, snapshot []byte) (*types.StoredArticle, error) {
	if err := store.ValidateStub(stub); err != nil {
		return nil, err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var name string
	if len(snapshot) > 0 {
		if name, err = store.NewSnapshotName(); err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO snapshot_files (name, data) VALUES ($1, $2)`,
			name, snapshot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to store snapshot: %w", err)
		}
	}

	a := store.NewArticle(stub, content, name)
	err = tx.QueryRow(ctx,
		`INSERT INTO articles (id, title, link, date_published, content, snapshot_file, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		a.ID, a.Title, a.Link, a.DatePublished, a.Content, a.SnapshotFile, a.CreatedAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateLink, stub.Link)
		}
		return nil, fmt.Errorf("failed to insert article: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateLink, stub.Link)
		}
		return nil, fmt.Errorf("failed to commit article: %w", err)
	}
	return &a, nil
}

// List returns all articles, newest publication date first.
func (db *DB) List(ctx context.Context) ([]types.StoredArticle, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, link, date_published, content, snapshot_file, created_at
		 FROM articles
		 ORDER BY date_published DESC NULLS LAST, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]types.StoredArticle, 0)
	for rows.Next() {
		var a types.StoredArticle
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.DatePublished, &a.Content, &a.SnapshotFile, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// Snapshot returns the blob stored under name.
func (db *DB) Snapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT data FROM snapshot_files WHERE name = $1`,
		name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ store.Store = (*DB)(nil)
