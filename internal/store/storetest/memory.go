// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/jonathan/article-archiver/internal/store"
	"github.com/jonathan/article-archiver/internal/types"
)

// Memory is a map-backed store.Store.
type Memory struct {
	mu        sync.Mutex
	articles  []types.StoredArticle
	snapshots map[string][]byte

	// ExistsErr and SaveErr, when set, make the matching call fail for that link.
	ExistsErr map[string]error
	SaveErr   map[string]error
	// SaveHook runs before every save and may panic.
	SaveHook func(stub types.CandidateStub)

	ExistsCalls []string
	Closed      bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		snapshots: map[string][]byte{},
		ExistsErr: map[string]error{},
		SaveErr:   map[string]error{},
	}
}

func (m *Memory) Exists(_ context.Context, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExistsCalls = append(m.ExistsCalls, link)
	if err, ok := m.ExistsErr[link]; ok {
		return false, err
	}
	_, ok := m.findLocked(link)
	return ok, nil
}

func (m *Memory) Save(_ context.Context, stub types.CandidateStub, content *string, snapshot []byte) (*types.StoredArticle, error) {
	if m.SaveHook != nil {
		m.SaveHook(stub)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.SaveErr[stub.Link]; ok {
		return nil, err
	}
	if err := store.ValidateStub(stub); err != nil {
		return nil, err
	}
	if _, ok := m.findLocked(stub.Link); ok {
		return nil, store.ErrDuplicateLink
	}

	var name string
	if len(snapshot) > 0 {
		var err error
		if name, err = store.NewSnapshotName(); err != nil {
			return nil, err
		}
		m.snapshots[name] = append([]byte(nil), snapshot...)
	}

	a := store.NewArticle(stub, content, name)
	m.articles = append(m.articles, a)
	return &a, nil
}

func (m *Memory) List(context.Context) ([]types.StoredArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]types.StoredArticle(nil), m.articles...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DatePublished, out[j].DatePublished
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	return out, nil
}

func (m *Memory) Snapshot(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.snapshots[name]
	if !ok {
		return nil, store.ErrSnapshotNotFound
	}
	return data, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Get returns the stored article for link.
func (m *Memory) Get(link string) (types.StoredArticle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(link)
}

// Len returns the number of stored articles.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

func (m *Memory) findLocked(link string) (types.StoredArticle, bool) {
	for _, a := range m.articles {
		if a.Link == link {
			return a, true
		}
	}
	return types.StoredArticle{}, false
}
