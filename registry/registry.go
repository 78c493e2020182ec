// Package registry coordinates the content stores and the metadata index.
// Uploads write bytes before the record and deletes remove the record before
// the bytes, so any partial failure leaves orphaned bytes rather than a
// record pointing at nothing.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/storage/index"
	"github.com/indieinfra/pantry/storage/media"
)

type Registry struct {
	index  index.Index
	local  media.LocalStore
	remote media.Store
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Registry)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the source of createdAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(idx index.Index, local media.LocalStore, remote media.Store, opts ...Option) *Registry {
	r := &Registry{
		index:  idx,
		local:  local,
		remote: remote,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UploadRequest is one file destined for one content store.
type UploadRequest struct {
	Name        string
	MIMEType    string
	Data        []byte
	Destination asset.Source
}

// DeleteResult always reports Deleted once the record is gone.
// ContentDeleteWarning means the bytes may still exist in the content store.
type DeleteResult struct {
	Deleted              bool `json:"deleted"`
	ContentDeleteWarning bool `json:"contentDeleteWarning,omitempty"`
}

// ReconcileReport lists local divergences between disk and index. Both lists
// are sorted and never nil.
type ReconcileReport struct {
	OrphanedFiles   []string `json:"orphanedFiles"`
	DanglingRecords []string `json:"danglingRecords"`
}

func (r *Registry) storeFor(source asset.Source) (media.Store, error) {
	switch source {
	case asset.SourceLocal:
		return r.local, nil
	case asset.SourceRemote:
		return r.remote, nil
	default:
		return nil, fmt.Errorf("%w: unknown destination %q", asset.ErrInvalidAsset, source)
	}
}

// Upload validates the file, stores its bytes, then catalogs it. If the
// catalog write fails the bytes are left in place and the returned
// *asset.MetadataWriteError carries their URL.
func (r *Registry) Upload(ctx context.Context, req UploadRequest) (*asset.MediaAsset, error) {
	store, err := r.storeFor(req.Destination)
	if err != nil {
		return nil, err
	}

	name := displayName(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", asset.ErrInvalidAsset)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", asset.ErrInvalidAsset)
	}

	class, err := asset.Classify(name, req.MIMEType, req.Data)
	if err != nil {
		return nil, err
	}

	obj, err := store.Store(ctx, req.Data, name, class.MIMEType)
	if err != nil {
		if !errors.Is(err, asset.ErrUploadFailed) {
			err = fmt.Errorf("%w: %w", asset.ErrUploadFailed, err)
		}
		return nil, err
	}

	id, err := asset.DeriveID(req.Destination, obj.NativeKey)
	if err != nil {
		return nil, r.orphaned(ctx, "", obj, err)
	}

	rec := &asset.MediaAsset{
		ID:         id,
		Name:       name,
		URL:        obj.URL,
		Thumbnail:  obj.Thumbnail,
		Type:       class.Kind,
		Source:     req.Destination,
		Size:       obj.Size,
		Dimensions: obj.Dimensions,
		CreatedAt:  r.now().UTC().Truncate(time.Millisecond),
		Tags:       []string{},
	}
	if req.Destination == asset.SourceRemote {
		key := obj.NativeKey
		rec.RemoteKey = &key
	}

	if err := rec.Validate(); err != nil {
		return nil, r.orphaned(ctx, id, obj, err)
	}

	if err := r.index.Insert(ctx, rec); err != nil {
		return nil, r.orphaned(ctx, id, obj, err)
	}

	r.logger.Info("media uploaded",
		zap.String("id", rec.ID),
		zap.String("source", string(rec.Source)),
		zap.String("type", string(rec.Type)),
		zap.Int64("size", rec.Size),
	)

	return rec.Clone(), nil
}

func (r *Registry) orphaned(ctx context.Context, id string, obj *media.StoredObject, cause error) error {
	r.logger.Warn("stored media could not be cataloged",
		zap.String("id", id),
		zap.String("url", obj.URL),
		zap.String("key", obj.NativeKey),
		zap.Error(cause),
	)
	return &asset.MetadataWriteError{ID: id, URL: obj.URL, Err: cause}
}

// Delete removes the record and then, best effort, the bytes. Deleting an
// id that does not exist succeeds.
func (r *Registry) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if _, err := asset.ParseID(id); err != nil {
		return DeleteResult{}, err
	}

	rec, err := r.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, asset.ErrNotFound) {
			return DeleteResult{Deleted: true}, nil
		}
		return DeleteResult{}, err
	}

	if err := r.index.Remove(ctx, id); err != nil {
		return DeleteResult{}, err
	}

	result := DeleteResult{Deleted: true}

	if err := r.deleteContent(ctx, rec); err != nil {
		result.ContentDeleteWarning = true
		r.logger.Warn("media removed from index but content cleanup failed",
			zap.String("id", rec.ID),
			zap.String("url", rec.URL),
			zap.Error(err),
		)
		return result, nil
	}

	r.logger.Info("media deleted", zap.String("id", rec.ID))
	return result, nil
}

func (r *Registry) deleteContent(ctx context.Context, rec *asset.MediaAsset) error {
	store, err := r.storeFor(rec.Source)
	if err != nil {
		return err
	}

	key, err := rec.NativeKey()
	if err != nil {
		return err
	}

	return store.Delete(ctx, key)
}

// Get returns a single record from the index.
func (r *Registry) Get(ctx context.Context, id string) (*asset.MediaAsset, error) {
	if _, err := asset.ParseID(id); err != nil {
		return nil, err
	}
	return r.index.Get(ctx, id)
}

// List reads from the index only; content stores are never consulted.
func (r *Registry) List(ctx context.Context, filter index.Filter) ([]*asset.MediaAsset, error) {
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source filter %q", asset.ErrInvalidAsset, filter.Source)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type filter %q", asset.ErrInvalidAsset, filter.Type)
	}

	out, err := r.index.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*asset.MediaAsset{}
	}
	return out, nil
}

// UpdateTags replaces an asset's tags. Only the index is touched.
func (r *Registry) UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error) {
	if _, err := asset.ParseID(id); err != nil {
		return nil, err
	}
	return r.index.UpdateTags(ctx, id, asset.NormalizeTags(tags))
}

// ReconcileLocal compares the upload directory with the local records in
// the index. It only reports. The index is read before the disk, so an
// upload racing with the scan can only show up as an orphan.
func (r *Registry) ReconcileLocal(ctx context.Context) (*ReconcileReport, error) {
	records, err := r.index.List(ctx, index.Filter{Source: asset.SourceLocal})
	if err != nil {
		return nil, fmt.Errorf("list local records: %w", err)
	}

	keys, err := r.local.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan local store: %w", err)
	}

	onDisk := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		onDisk[k] = struct{}{}
	}

	report := &ReconcileReport{OrphanedFiles: []string{}, DanglingRecords: []string{}}

	indexed := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ident, err := asset.ParseID(rec.ID)
		if err != nil || ident.Source != asset.SourceLocal {
			report.DanglingRecords = append(report.DanglingRecords, rec.ID)
			continue
		}
		indexed[ident.NativeKey] = struct{}{}
		if _, ok := onDisk[ident.NativeKey]; !ok {
			report.DanglingRecords = append(report.DanglingRecords, rec.ID)
		}
	}

	for _, k := range keys {
		if _, ok := indexed[k]; !ok {
			report.OrphanedFiles = append(report.OrphanedFiles, r.local.Path(k))
		}
	}

	sort.Strings(report.OrphanedFiles)
	sort.Strings(report.DanglingRecords)

	if len(report.OrphanedFiles) > 0 || len(report.DanglingRecords) > 0 {
		r.logger.Warn("local media diverges from index",
			zap.Int("orphaned", len(report.OrphanedFiles)),
			zap.Int("dangling", len(report.DanglingRecords)),
		)
	}

	return report, nil
}

// displayName strips any client-supplied directory components.
func displayName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
