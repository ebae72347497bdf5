package engine

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

// wireImage carries an image as PNG bytes; encoding/json renders Data as base64
type wireImage struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

type runRequest struct {
	Arguments     map[string]any `json:"arguments"`
	Outputs       []string       `json:"outputs"`
	ContentType   string         `json:"content_type"`
	Intermediates bool           `json:"intermediates"`
}

type runResponse struct {
	Images              [][]byte            `json:"images"`
	Text                *string             `json:"text,omitempty"`
	NSFWContentDetected []bool              `json:"nsfw_content_detected,omitempty"`
	OtherOutputs        map[string][][]byte `json:"other_outputs,omitempty"`
	Intermediates       [][]byte            `json:"intermediates,omitempty"`
}

type preprocessRequest struct {
	Image   wireImage         `json:"image"`
	Control media.ControlSpec `json:"control"`
}

type preprocessResponse struct {
	Image []byte `json:"image"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func encodeImage(img image.Image) (wireImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return wireImage{}, fmt.Errorf("encode image: %w", err)
	}
	return wireImage{Format: "png", Data: buf.Bytes()}, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode engine image: %w", err)
	}
	return img, nil
}

func decodeImages(blobs [][]byte) ([]image.Image, error) {
	images := make([]image.Image, 0, len(blobs))
	for _, blob := range blobs {
		img, err := decodeImage(blob)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// encodeArguments replaces in-memory images with their wire form
func encodeArguments(args workflows.Arguments) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for key, value := range args {
		img, ok := value.(image.Image)
		if !ok {
			out[key] = value
			continue
		}
		wire, err := encodeImage(img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = wire
	}
	return out, nil
}
