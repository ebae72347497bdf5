package workflows

import "errors"

var (
	// ErrInvalidJob is returned when a job cannot be decoded or fails validation
	ErrInvalidJob = errors.New("invalid job")

	// ErrImageSizeLimit is returned when requested dimensions exceed MaxImageSize
	ErrImageSizeLimit = errors.New("requested image size exceeds limit")
)
