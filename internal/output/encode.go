package output

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Content types the processor can encode
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// JPEG quality presets
const (
	QualityWebHigh = 80
	QualityWebLow  = 35
)

// ThumbnailSize bounds both thumbnail dimensions
const ThumbnailSize = 100

// Encode serializes img as contentType. quality applies to JPEG only.
// JPEGs are baseline: the underlying image/jpeg encoder has no progressive
// or Huffman optimization switches.
func Encode(img image.Image, contentType string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch contentType {
	case ContentTypeJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("JPEG encode failed: %w", err)
		}
	case ContentTypePNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("PNG encode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return buf.Bytes(), nil
}

// Thumbnail decodes an encoded image and re-encodes it as a low quality JPEG
// no larger than ThumbnailSize in either dimension
func Thumbnail(blob []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("thumbnail decode failed: %w", err)
	}
	return thumbnailOf(img)
}

func thumbnailOf(img image.Image) ([]byte, error) {
	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	return Encode(thumb, ContentTypeJPEG, QualityWebLow)
}
