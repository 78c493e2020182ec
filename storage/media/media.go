package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gosimple/slug"

	"github.com/indieinfra/pantry/asset"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

// StoredObject describes bytes that a Store has durably accepted.
type StoredObject struct {
	NativeKey  string
	URL        string
	Thumbnail  *string
	Size       int64
	Dimensions *asset.Dimensions
}

// Store holds raw bytes for one source. Callers validate the media type
// before calling Store.
type Store interface {
	// Store writes the bytes and returns the key and public URL they can be
	// found at. On failure nothing addressable is left behind.
	Store(ctx context.Context, data []byte, originalName string, mimeType string) (*StoredObject, error)

	// URL resolves a native key to its public URL without any I/O.
	URL(nativeKey string) string

	// Delete removes the bytes for a key. A key that no longer exists is not
	// an error; a non-nil error means the bytes may still be present.
	Delete(ctx context.Context, nativeKey string) error
}

// Scanner is implemented by stores whose contents can be enumerated cheaply,
// which is what local reconciliation needs.
type Scanner interface {
	// Keys lists every native key currently held by the store.
	Keys(ctx context.Context) ([]string, error)

	// Path returns the physical location of a key, for reporting.
	Path(nativeKey string) string
}

// LocalStore is a Store that can also be scanned.
type LocalStore interface {
	Store
	Scanner
}

// Describe fills in the thumbnail and dimensions for freshly stored bytes.
// Images preview as themselves; videos use the placeholder, or nil when
// none is configured.
func Describe(obj *StoredObject, data []byte, mimeType string, videoPlaceholder string) {
	if asset.IsVideo(mimeType) {
		if videoPlaceholder != "" {
			thumb := videoPlaceholder
			obj.Thumbnail = &thumb
		}
		return
	}

	thumb := obj.URL
	obj.Thumbnail = &thumb
	obj.Dimensions = asset.ProbeDimensions(asset.KindImage, data)
}

// StoreError tags a backend failure with the registry's error taxonomy:
// timeouts, cancellations and connection-level failures are transient
// (asset.ErrStoreUnavailable); everything else is asset.ErrUploadFailed.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}

	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, asset.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w: %w", op, asset.ErrUploadFailed, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Extension keeps the original extension, lower-cased, or derives one from
// the MIME type when the name has none.
func Extension(originalName, mimeType string) (string, error) {
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		c, err := asset.Classify(base, mimeType, nil)
		if err != nil {
			return "", err
		}
		ext = c.Extension
	}

	if strings.ContainsAny(ext, `/\`) {
		return "", fmt.Errorf("%w: extension %q", asset.ErrUnsupportedType, ext)
	}

	return ext, nil
}

// ObjectKey builds a collision-resistant object key from an upload's
// original filename: a slug of its base name joined with a random token,
// then the extension, laid out by the path pattern.
func ObjectKey(pattern *storageutil.PathPattern, originalName, mimeType string, now time.Time, token string) (string, error) {
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext, err := Extension(base, mimeType)
	if err != nil {
		return "", err
	}
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "media"
	}

	return pattern.Generate(stem+"-"+token, now.UTC(), ext)
}
