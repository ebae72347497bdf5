package workflows

import (
	"context"
	"fmt"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

type captionView struct {
	ModelName     string `mapstructure:"model_name" validate:"required"`
	StartImageURI string `mapstructure:"start_image_uri"`
}

// captionNormalizer loads the image to describe and drops tuning parameters
type captionNormalizer struct {
	fetcher ImageFetcher
}

func (n *captionNormalizer) Name() string { return "caption" }

func (n *captionNormalizer) Normalize(ctx context.Context, job pipeline.Job) (*Dispatch, error) {
	var view captionView
	if err := decodeView(map[string]any(job), &view); err != nil {
		return nil, err
	}

	args := newArguments(job)
	delete(args, pipeline.FieldParameters)

	if args.Has(pipeline.FieldStartImageURI) {
		img, err := n.fetcher.Fetch(ctx, view.StartImageURI, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("start_image_uri: %w", err)
		}
		args[ArgImage] = img
		delete(args, pipeline.FieldStartImageURI)
	}

	return &Dispatch{Handle: HandleCaption, Args: args}, nil
}
