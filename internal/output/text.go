package output

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

type captionBody struct {
	Caption string `json:"caption"`
}

// MakeTextResult wraps a caption as a JSON envelope. The hash covers the
// caption text itself, not the JSON bytes.
func MakeTextResult(text string) (pipeline.ResultEnvelope, error) {
	blob, err := json.Marshal(captionBody{Caption: text})
	if err != nil {
		return pipeline.ResultEnvelope{}, fmt.Errorf("caption encode failed: %w", err)
	}
	thumb, err := Encode(TextImage(ContentTypeText, ThumbnailSize, ThumbnailSize), ContentTypeJPEG, QualityWebLow)
	if err != nil {
		return pipeline.ResultEnvelope{}, err
	}
	sum := sha256.Sum256([]byte(text))
	return pipeline.ResultEnvelope{
		Blob:        blob,
		ContentType: ContentTypeJSON,
		Thumbnail:   thumb,
		SHA256Hash:  hex.EncodeToString(sum[:]),
	}, nil
}

// TextImage renders text in white on a near-black canvas
func TextImage(text string, width, height int) *image.NRGBA {
	img := imaging.New(width, height, color.NRGBA{R: 1, A: 255})
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
	}
	y := 5 + face.Ascent
	for _, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(5, y)
		d.DrawString(line)
		y += face.Height
	}
	return img
}
