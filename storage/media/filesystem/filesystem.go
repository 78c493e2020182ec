package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/storage/media"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

// tempPrefix marks in-flight writes. Keys never start with a dot, so scans
// and deletes can tell the two apart.
const tempPrefix = ".upload-"

// Store keeps uploaded media as flat files in a single directory. Each file
// is named by a random token plus the original extension.
type Store struct {
	basePath    string
	publicURL   string
	placeholder string
	newToken    func() string
}

var _ media.LocalStore = (*Store)(nil)

// NewFilesystemMediaStore creates the upload directory if needed.
func NewFilesystemMediaStore(cfg *config.LocalMediaStrategy, videoPlaceholder string) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("local media config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Store{
		basePath:    filepath.Clean(cfg.Path),
		publicURL:   storageutil.NormalizeBaseURL(cfg.PublicUrl),
		placeholder: videoPlaceholder,
		newToken:    uuid.NewString,
	}, nil
}

// Store writes the bytes to a temporary file in the upload directory, syncs
// it, and links it into place. The temporary file never outlives the call.
func (s *Store) Store(ctx context.Context, data []byte, originalName string, mimeType string) (*media.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, media.StoreError("local store", err)
	}

	ext, err := media.Extension(originalName, mimeType)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("local store: %w: %w", asset.ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()

	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("local store: write: %w: %w", asset.ErrUploadFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("local store: sync: %w: %w", asset.ErrUploadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("local store: close: %w: %w", asset.ErrUploadFailed, err)
	}

	key, err := s.commit(tmpPath, ext)
	if err != nil {
		return nil, err
	}

	obj := &media.StoredObject{
		NativeKey: key,
		URL:       s.URL(key),
		Size:      int64(len(data)),
	}
	media.Describe(obj, data, mimeType, s.placeholder)

	return obj, nil
}

// commit hard-links the temporary file under a fresh name. Link fails with
// EEXIST instead of replacing an existing file, so a taken name is retried
// with a new token. The temporary name is removed by the caller.
func (s *Store) commit(tmpPath, ext string) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		key := s.newToken() + ext
		err := os.Link(tmpPath, filepath.Join(s.basePath, key))
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("local store: link: %w: %w", asset.ErrUploadFailed, err)
		}
	}

	return "", fmt.Errorf("local store: %w: could not allocate a unique filename", asset.ErrUploadFailed)
}

func (s *Store) URL(nativeKey string) string {
	return s.publicURL + nativeKey
}

// Path returns the absolute path a key is stored at.
func (s *Store) Path(nativeKey string) string {
	return filepath.Join(s.basePath, nativeKey)
}

// Delete removes a file by key. A missing file counts as deleted.
func (s *Store) Delete(ctx context.Context, nativeKey string) error {
	if !validKey(nativeKey) {
		return fmt.Errorf("invalid local key %q", nativeKey)
	}

	if err := os.Remove(s.Path(nativeKey)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}

// Keys lists the stored files, skipping directories, dotfiles and in-flight
// temporary files.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !validKey(entry.Name()) {
			continue
		}
		keys = append(keys, entry.Name())
	}

	sort.Strings(keys)
	return keys, nil
}

func validKey(key string) bool {
	return key != "" &&
		!strings.HasPrefix(key, ".") &&
		!strings.ContainsAny(key, `/\`) &&
		filepath.Base(key) == key
}
