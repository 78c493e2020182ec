package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/indieinfra/pantry/asset"
)

// MemoryIndex keeps records in process memory. Stored and returned records
// are copies, so callers can never mutate the catalog behind its back.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]*asset.MediaAsset
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]*asset.MediaAsset)}
}

func (m *MemoryIndex) Insert(ctx context.Context, a *asset.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[a.ID]; exists {
		return fmt.Errorf("%w: %s", asset.ErrDuplicateID, a.ID)
	}

	m.records[a.ID] = a.Clone()
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (*asset.MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
	}

	return rec.Clone(), nil
}

func (m *MemoryIndex) List(ctx context.Context, filter Filter) ([]*asset.MediaAsset, error) {
	m.mu.RLock()
	out := make([]*asset.MediaAsset, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryIndex) UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
	}

	rec.Tags = append([]string{}, tags...)
	return rec.Clone(), nil
}

func (m *MemoryIndex) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Close(ctx context.Context) error {
	return nil
}
