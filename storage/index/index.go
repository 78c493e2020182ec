package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/indieinfra/pantry/asset"
)

// Index is the authoritative catalog of media assets. Every backend keys
// records by asset id and relies on its own single-document atomicity for
// duplicate detection.
type Index interface {
	// Insert adds a record, failing with asset.ErrDuplicateID when the id is
	// already present.
	Insert(ctx context.Context, a *asset.MediaAsset) error

	// Get returns the record for id or asset.ErrNotFound.
	Get(ctx context.Context, id string) (*asset.MediaAsset, error)

	// List returns matching records, newest first. It never returns nil.
	List(ctx context.Context, filter Filter) ([]*asset.MediaAsset, error)

	// UpdateTags replaces the tags of a record and returns the result.
	// Nothing else about the record changes.
	UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error)

	// Remove deletes a record. Removing an unknown id succeeds.
	Remove(ctx context.Context, id string) error

	// Close releases any connection held by the backend.
	Close(ctx context.Context) error
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Source asset.Source
	Type   asset.Kind
}

func (f Filter) Matches(a *asset.MediaAsset) bool {
	if f.Source != "" && a.Source != f.Source {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

// sortNewestFirst orders by creation time descending, breaking ties by id so
// listings are stable.
func sortNewestFirst(assets []*asset.MediaAsset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if !assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].CreatedAt.After(assets[j].CreatedAt)
		}
		return assets[i].ID < assets[j].ID
	})
}

// encodeDoc and decodeDoc are shared by the row-oriented backends, which keep
// the whole record as a JSON document next to a few projected columns.
func encodeDoc(a *asset.MediaAsset) (string, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode asset %s: %w", a.ID, err)
	}
	return string(payload), nil
}

func decodeDoc(raw string) (*asset.MediaAsset, error) {
	var a asset.MediaAsset
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return &a, nil
}
