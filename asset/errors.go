package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID indicates an id without a recognised source prefix.
	ErrInvalidID = errors.New("invalid asset id")

	// ErrInvalidAsset indicates a record that is not total or not self-consistent.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrUnsupportedType indicates a file that is neither an image nor a video.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrUploadFailed indicates the content store did not accept the bytes.
	// Nothing was stored and the upload is safe to retry from scratch.
	ErrUploadFailed = errors.New("upload failed")

	// ErrStoreUnavailable indicates a transient transport or storage failure.
	// It also matches ErrUploadFailed.
	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrUploadFailed)

	// ErrMetadataWriteFailed indicates bytes were stored but could not be cataloged.
	ErrMetadataWriteFailed = errors.New("metadata write failed")

	// ErrDuplicateID indicates an attempt to register an id that already exists.
	ErrDuplicateID = errors.New("duplicate asset id")

	// ErrNotFound indicates no record exists for the id.
	ErrNotFound = errors.New("asset not found")
)

// MetadataWriteError reports bytes that reached a content store but whose
// record could not be written to the index. URL is where the bytes live.
type MetadataWriteError struct {
	ID  string
	URL string
	Err error
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("stored %s at %s but failed to catalog it: %v", e.ID, e.URL, e.Err)
}

func (e *MetadataWriteError) Unwrap() []error {
	return []error{ErrMetadataWriteFailed, e.Err}
}
