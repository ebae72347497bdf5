package media

import "errors"

var (
	// ErrNotImage is returned when a probed or downloaded input is not an image
	ErrNotImage = errors.New("input does not appear to be an image")

	// ErrImageTooLarge is returned when an input exceeds the byte limit
	ErrImageTooLarge = errors.New("input image too large")

	// ErrUnsupportedScheme is returned when no source handles the URI scheme
	ErrUnsupportedScheme = errors.New("unsupported input uri scheme")

	// ErrProbeFailed is returned when the metadata probe cannot be completed
	ErrProbeFailed = errors.New("input probe failed")

	// ErrDownloadFailed is returned when the input body cannot be retrieved
	ErrDownloadFailed = errors.New("input download failed")

	// ErrDecodeFailed is returned when the input body cannot be decoded
	ErrDecodeFailed = errors.New("input decode failed")

	// ErrPreprocessorUnavailable is returned when a control spec is given but no
	// preprocessor is configured
	ErrPreprocessorUnavailable = errors.New("control image preprocessor not configured")
)
