package executors

import (
	"errors"

	"github.com/tendant/simple-generation-pipeline/internal/engine"
	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

var validationErrors = []error{
	workflows.ErrInvalidJob,
	workflows.ErrImageSizeLimit,
	media.ErrNotImage,
	media.ErrImageTooLarge,
	media.ErrUnsupportedScheme,
	media.ErrDecodeFailed,
	output.ErrTooManyImages,
	output.ErrMismatchedSizes,
	output.ErrUnsupportedContentType,
	registry.ErrUnknownType,
	engine.ErrEngineNotFound,
}

// IsValidationError reports whether err was caused by the job itself rather
// than by infrastructure. Such jobs must not be retried.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
