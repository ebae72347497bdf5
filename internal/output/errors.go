package output

import "errors"

var (
	// ErrTooManyImages is returned when a slot holds more images than the largest grid
	ErrTooManyImages = errors.New("too many images for post-processing")

	// ErrNoImages is returned when composing an empty slot
	ErrNoImages = errors.New("no images to post-process")

	// ErrMismatchedSizes is returned when grid inputs differ in size
	ErrMismatchedSizes = errors.New("images in a grid must share one size")

	// ErrUnsupportedContentType is returned for encodings other than JPEG and PNG
	ErrUnsupportedContentType = errors.New("unsupported content type")
)
