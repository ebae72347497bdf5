package media

import (
	"context"
	"image"
	"io"
)

// Limits applied to every fetched input
const (
	MaxInputBytes int64 = 3 * 1024 * 1024
	MaxDimension        = 1024
)

// Size is a (height, width) bound in pixels
type Size struct {
	Height int
	Width  int
}

// ControlSpec is the conditioning metadata that triggers control-image preprocessing
type ControlSpec struct {
	ModelName  string         `mapstructure:"controlnet_model_name" json:"controlnet_model_name,omitempty"`
	Preprocess bool           `mapstructure:"preprocess" json:"preprocess"`
	Options    map[string]any `mapstructure:",remain" json:"options,omitempty"`
}

// Probe is the metadata read before any body is downloaded
type Probe struct {
	ContentType   string
	ContentLength int64
}

// Source retrieves input media for one URI scheme
type Source interface {
	// Probe reads content type and length without downloading the body
	Probe(ctx context.Context, uri string) (Probe, error)

	// Open returns the body. Callers close it.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Preprocessor turns a fetched image into a control image
type Preprocessor interface {
	Preprocess(ctx context.Context, img image.Image, spec ControlSpec) (image.Image, error)
}

// PreprocessorFunc adapts a function to Preprocessor
type PreprocessorFunc func(ctx context.Context, img image.Image, spec ControlSpec) (image.Image, error)

// Preprocess implements Preprocessor
func (f PreprocessorFunc) Preprocess(ctx context.Context, img image.Image, spec ControlSpec) (image.Image, error) {
	return f(ctx, img, spec)
}
