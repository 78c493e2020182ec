package asset

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const genericMIME = "application/octet-stream"

type extensionInfo struct {
	kind Kind
	mime string
}

var extensions = map[string]extensionInfo{
	".jpg":  {KindImage, "image/jpeg"},
	".jpeg": {KindImage, "image/jpeg"},
	".png":  {KindImage, "image/png"},
	".gif":  {KindImage, "image/gif"},
	".webp": {KindImage, "image/webp"},
	".avif": {KindImage, "image/avif"},
	".bmp":  {KindImage, "image/bmp"},
	".tif":  {KindImage, "image/tiff"},
	".tiff": {KindImage, "image/tiff"},
	".svg":  {KindImage, "image/svg+xml"},
	".mp4":  {KindVideo, "video/mp4"},
	".m4v":  {KindVideo, "video/x-m4v"},
	".mov":  {KindVideo, "video/quicktime"},
	".webm": {KindVideo, "video/webm"},
	".ogv":  {KindVideo, "video/ogg"},
}

// Classification is the validated type information for an upload.
type Classification struct {
	Kind      Kind
	MIMEType  string
	Extension string
}

// Classify derives the media kind of an upload from its filename, declared
// MIME type and leading bytes. Anything that is not an image or a video is
// rejected with ErrUnsupportedType. The content is only sniffed when the
// declared type is missing or generic, and a sniffed type that is neither
// image nor video rejects the upload even when the extension looks right.
func Classify(filename, declared string, data []byte) (Classification, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	info, knownExt := extensions[ext]
	if ext != "" && !knownExt {
		return Classification{}, fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}

	mt := baseMIME(declared)
	if mt == "" || mt == genericMIME {
		mt = genericMIME
		if len(data) > 0 {
			mt = baseMIME(mimetype.Detect(data).String())
		}
	}

	mimeKind := kindOfMIME(mt)

	if knownExt {
		if mimeKind != "" && mimeKind != info.kind {
			return Classification{}, fmt.Errorf("%w: %s content named %q", ErrUnsupportedType, mt, filename)
		}
		if mimeKind == "" && mt != genericMIME {
			return Classification{}, fmt.Errorf("%w: %s content named %q", ErrUnsupportedType, mt, filename)
		}
		if mimeKind == "" {
			mt = info.mime
		}
		return Classification{Kind: info.kind, MIMEType: mt, Extension: ext}, nil
	}

	if mimeKind == "" {
		return Classification{}, fmt.Errorf("%w: cannot determine type of %q", ErrUnsupportedType, filename)
	}

	return Classification{Kind: mimeKind, MIMEType: mt, Extension: extensionForMIME(mt)}, nil
}

// IsVideo reports whether a MIME type describes video content.
func IsVideo(mimeType string) bool {
	return kindOfMIME(baseMIME(mimeType)) == KindVideo
}

func kindOfMIME(mt string) Kind {
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return ""
	}
}

func baseMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// extensionForMIME picks the canonical extension for a supported MIME type,
// falling back to the system table.
func extensionForMIME(mt string) string {
	best := ""
	for ext, info := range extensions {
		if info.mime == mt && (best == "" || ext < best) {
			best = ext
		}
	}
	if best != "" {
		return best
	}

	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
