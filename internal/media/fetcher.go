package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/tendant/simple-generation-pipeline/internal/metrics"
)

// Fetcher retrieves referenced input images under the size and type policy
type Fetcher struct {
	sources      map[string]Source
	preprocessor Preprocessor
	maxBytes     int64
	maxDimension int
	logger       *log.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithSource registers a source for a URI scheme
func WithSource(scheme string, src Source) Option {
	return func(f *Fetcher) {
		f.sources[strings.ToLower(scheme)] = src
	}
}

// WithPreprocessor sets the control-image preprocessor
func WithPreprocessor(p Preprocessor) Option {
	return func(f *Fetcher) {
		f.preprocessor = p
	}
}

// WithMaxBytes overrides the input byte limit
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher. http and https are served by an HTTPSource
// unless overridden with WithSource.
func NewFetcher(opts ...Option) *Fetcher {
	httpSource := NewHTTPSource(DefaultFetchTimeout)
	f := &Fetcher{
		sources: map[string]Source{
			"http":  httpSource,
			"https": httpSource,
		},
		maxBytes:     MaxInputBytes,
		maxDimension: MaxDimension,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch probes, downloads, decodes and downsizes the image at uri. When
// target is set the image is shrunk to fit it, otherwise to the global
// maximum dimension. When control is set the preprocessed control image is
// returned instead of the fetched one.
func (f *Fetcher) Fetch(ctx context.Context, uri string, target *Size, control *ControlSpec) (image.Image, error) {
	src, err := f.sourceFor(uri)
	if err != nil {
		metrics.FetchRejected.WithLabelValues(metrics.ReasonScheme).Inc()
		return nil, err
	}

	// Step 1: Probe metadata before touching the body
	probe, err := src.Probe(ctx, uri)
	if err != nil {
		return nil, err
	}

	// Step 2: Content type policy
	if !strings.HasPrefix(probe.ContentType, "image") {
		metrics.FetchRejected.WithLabelValues(metrics.ReasonNotImage).Inc()
		return nil, fmt.Errorf("%w: content type was %q", ErrNotImage, probe.ContentType)
	}

	// Step 3: Size policy
	if probe.ContentLength > f.maxBytes {
		metrics.FetchRejected.WithLabelValues(metrics.ReasonTooLarge).Inc()
		return nil, fmt.Errorf("%w: max size is %d bytes, image was %d", ErrImageTooLarge, f.maxBytes, probe.ContentLength)
	}

	// Step 4: Download, bounded even if the probe lied
	data, err := f.download(ctx, src, uri)
	if err != nil {
		return nil, err
	}
	metrics.FetchBytes.Observe(float64(len(data)))

	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		metrics.FetchRejected.WithLabelValues(metrics.ReasonNotImage).Inc()
		return nil, fmt.Errorf("%w: body sniffed as %q", ErrNotImage, mt.String())
	}

	// Step 5: Decode with EXIF orientation applied, drop alpha
	decoded, err := decodeRGB(data)
	if err != nil {
		return nil, err
	}
	var img image.Image = decoded

	// Step 6: Downscale, never upscale
	img = fitWithin(img, target, f.maxDimension)
	f.logger.Debug("Fetched input image",
		"uri", uri,
		"bytes", len(data),
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	// Step 7: Control preprocessing
	if control != nil {
		if f.preprocessor == nil {
			return nil, ErrPreprocessorUnavailable
		}
		out, err := f.preprocessor.Preprocess(ctx, img, *control)
		if err != nil {
			return nil, fmt.Errorf("control preprocessing failed: %w", err)
		}
		return out, nil
	}

	return img, nil
}

func (f *Fetcher) sourceFor(uri string) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}
	src, ok := f.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return src, nil
}

func (f *Fetcher) download(ctx context.Context, src Source, uri string) ([]byte, error) {
	body, err := src.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		metrics.FetchRejected.WithLabelValues(metrics.ReasonTooLarge).Inc()
		return nil, fmt.Errorf("%w: max size is %d bytes, body exceeded it", ErrImageTooLarge, f.maxBytes)
	}
	return data, nil
}

func decodeRGB(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb, nil
}

func fitWithin(img image.Image, target *Size, maxDimension int) image.Image {
	b := img.Bounds()
	if target != nil && target.Height > 0 && target.Width > 0 {
		if b.Dy() > target.Height || b.Dx() > target.Width {
			return imaging.Fit(img, target.Width, target.Height, imaging.Lanczos)
		}
		return img
	}
	if b.Dy() > maxDimension || b.Dx() > maxDimension {
		return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}
	return img
}
