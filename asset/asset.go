package asset

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Source names the content store that physically holds an asset's bytes.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

func (s Source) Valid() bool {
	return s == SourceLocal || s == SourceRemote
}

// ParseSource accepts the wire form of a source ("local" or "remote").
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", raw)
	}
	return s, nil
}

// Kind is the media type of an asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// ParseKind accepts the wire form of a kind ("image" or "video").
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown media type %q", raw)
	}
	return k, nil
}

type Dimensions struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
}

// MediaAsset is the record held in the metadata index. Every field is always
// present on the wire; optional values are encoded as explicit nulls.
type MediaAsset struct {
	ID         string      `json:"id" bson:"_id"`
	Name       string      `json:"name" bson:"name"`
	URL        string      `json:"url" bson:"url"`
	Thumbnail  *string     `json:"thumbnail" bson:"thumbnail"`
	Type       Kind        `json:"type" bson:"type"`
	Source     Source      `json:"source" bson:"source"`
	Size       int64       `json:"size" bson:"size"`
	Dimensions *Dimensions `json:"dimensions" bson:"dimensions"`
	CreatedAt  time.Time   `json:"createdAt" bson:"created_at"`
	Tags       []string    `json:"tags" bson:"tags"`
	RemoteKey  *string     `json:"remoteKey" bson:"remote_key"`
}

// NativeKey returns the key the owning content store knows the bytes by.
// Remote assets prefer the recorded remote key over re-deriving it from the id.
func (a *MediaAsset) NativeKey() (string, error) {
	if a.Source == SourceRemote && a.RemoteKey != nil && *a.RemoteKey != "" {
		return *a.RemoteKey, nil
	}

	ident, err := ParseID(a.ID)
	if err != nil {
		return "", err
	}
	return ident.NativeKey, nil
}

// Validate checks that the record is total and internally consistent. A nil
// tag list is normalised to an empty one.
func (a *MediaAsset) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: asset is nil", ErrInvalidAsset)
	}

	ident, err := ParseID(a.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, err)
	}

	switch {
	case ident.Source != a.Source:
		return fmt.Errorf("%w: id %q does not match source %q", ErrInvalidAsset, a.ID, a.Source)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidAsset)
	case a.URL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidAsset)
	case !a.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAsset, a.Type)
	case a.Size < 0:
		return fmt.Errorf("%w: size must not be negative", ErrInvalidAsset)
	case a.CreatedAt.IsZero():
		return fmt.Errorf("%w: createdAt is required", ErrInvalidAsset)
	}

	if a.Source == SourceRemote {
		if a.RemoteKey == nil || *a.RemoteKey != ident.NativeKey {
			return fmt.Errorf("%w: remote asset must record its remote key", ErrInvalidAsset)
		}
	} else if a.RemoteKey != nil {
		return fmt.Errorf("%w: local asset cannot carry a remote key", ErrInvalidAsset)
	}

	if a.Dimensions != nil && (a.Dimensions.Width <= 0 || a.Dimensions.Height <= 0) {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidAsset)
	}

	if a.Tags == nil {
		a.Tags = []string{}
	}

	return nil
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing slices or pointers.
func (a *MediaAsset) Clone() *MediaAsset {
	if a == nil {
		return nil
	}

	out := *a
	out.Tags = slices.Clone(a.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if a.Thumbnail != nil {
		v := *a.Thumbnail
		out.Thumbnail = &v
	}
	if a.RemoteKey != nil {
		v := *a.RemoteKey
		out.RemoteKey = &v
	}
	if a.Dimensions != nil {
		d := *a.Dimensions
		out.Dimensions = &d
	}
	return &out
}

// NormalizeTags trims each tag, drops empties and removes repeats while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
