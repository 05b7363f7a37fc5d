// Package store defines the archive of saved articles and their snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-archiver/internal/types"
)

// SnapshotDir is the directory prefix of every snapshot name.
const SnapshotDir = "pdfs"

var (
	// ErrDuplicateLink is returned by Save when the link is already stored.
	ErrDuplicateLink = errors.New("article with this link already exists")
	// ErrSnapshotNotFound is returned by Snapshot for an unknown name.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Store persists articles keyed by their unique link.
type Store interface {
	// Exists reports whether an article with link is already stored.
	Exists(ctx context.Context, link string) (bool, error)
	// Save inserts a new article. When snapshot is non-empty it is stored
	// under a generated name together with the record in one transaction;
	// otherwise the record is saved without a snapshot.
	Save(ctx context.Context, stub types.CandidateStub, content *string, snapshot []byte) (*types.StoredArticle, error)
	// List returns every article, newest publication date first.
	List(ctx context.Context) ([]types.StoredArticle, error)
	// Snapshot returns the blob stored under name.
	Snapshot(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// NewSnapshotName returns a fresh, time-ordered snapshot name such as
// pdfs/article_0199f0c2-....pdf.
func NewSnapshotName() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate snapshot name: %w", err)
	}
	return path.Join(SnapshotDir, "article_"+id.String()+".pdf"), nil
}

// NewArticle builds the record Save inserts for stub.
func NewArticle(stub types.CandidateStub, content *string, snapshotName string) types.StoredArticle {
	a := types.StoredArticle{
		ID:        uuid.New(),
		Title:     types.TruncateTitle(stub.Title),
		Link:      stub.Link,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if !stub.Date.IsZero() {
		y, m, d := stub.Date.Date()
		published := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		a.DatePublished = &published
	}
	if snapshotName != "" {
		a.SnapshotFile = &snapshotName
	}
	return a
}

// ValidateStub rejects stubs that can never be stored.
func ValidateStub(stub types.CandidateStub) error {
	if stub.Link == "" {
		return fmt.Errorf("article link is empty")
	}
	if len([]rune(stub.Link)) > types.MaxLinkLength {
		return fmt.Errorf("article link exceeds %d characters", types.MaxLinkLength)
	}
	return nil
}
