package asset

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// ProbeDimensions decodes raster images to read their displayed size, with
// EXIF orientation applied. It returns nil for video and for image formats
// that cannot be decoded (SVG, WebP, AVIF).
func ProbeDimensions(kind Kind, data []byte) *Dimensions {
	if kind != KindImage || len(data) == 0 {
		return nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}

	return &Dimensions{Width: b.Dx(), Height: b.Dy()}
}
