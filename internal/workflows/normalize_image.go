package workflows

import (
	"context"
	"fmt"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// DefaultImageSteps is used when an image job omits num_inference_steps
const DefaultImageSteps = 30

type imageView struct {
	baseView      `mapstructure:",squash"`
	Height        *int     `mapstructure:"height"`
	Width         *int     `mapstructure:"width"`
	StartImageURI string   `mapstructure:"start_image_uri"`
	MaskImageURI  string   `mapstructure:"mask_image_uri"`
	Strength      *float64 `mapstructure:"strength"`
}

// imageNormalizer handles txt2img, img2img, inpainting, controlnet and
// instruct-pix2pix jobs. It is the default route.
type imageNormalizer struct {
	fetcher ImageFetcher
	types   *registry.Registry
}

func (n *imageNormalizer) Name() string { return "image" }

func (n *imageNormalizer) Normalize(ctx context.Context, job pipeline.Job) (*Dispatch, error) {
	var view imageView
	if err := decodeView(map[string]any(job), &view); err != nil {
		return nil, err
	}

	var target *media.Size
	if view.Height != nil && view.Width != nil {
		if *view.Height > MaxImageSize || *view.Width > MaxImageSize {
			return nil, fmt.Errorf("%w: the max image size is (%d, %d); got (%d, %d)",
				ErrImageSizeLimit, MaxImageSize, MaxImageSize, *view.Height, *view.Width)
		}
		target = &media.Size{Height: *view.Height, Width: *view.Width}
	}

	args := newArguments(job)
	params, err := popParameters(args)
	if err != nil {
		return nil, err
	}

	setDefault(args, ArgPrompt, "")
	args[ArgSupportsXformers] = boolOr(params.SupportsXformers, true)
	args[ArgUpscale] = boolOr(params.Upscale, false)
	setDefault(args, ArgNumInferenceSteps, DefaultImageSteps)

	hasStart := args.Has(pipeline.FieldStartImageURI)
	hasMask := args.Has(pipeline.FieldMaskImageURI)

	// resolve classes before any download so bad names fail fast
	pipelineName := params.PipelineType
	if pipelineName == "" {
		switch {
		case hasStart && params.ControlNet != nil:
			pipelineName = PipelineControlNet
		case hasStart:
			pipelineName = PipelineImg2Img
		default:
			pipelineName = PipelineDiffusion
		}
	}
	if err := resolveTypes(n.types, args, pipelineName, orDefault(params.SchedulerType, SchedulerDefault)); err != nil {
		return nil, err
	}

	if hasStart || hasMask {
		// dimensions come from the fetched images
		delete(args, ArgHeight)
		delete(args, ArgWidth)
	}

	if hasStart {
		img, err := n.fetcher.Fetch(ctx, view.StartImageURI, target, params.ControlNet)
		if err != nil {
			return nil, fmt.Errorf("start_image_uri: %w", err)
		}
		args[ArgImage] = img
		delete(args, pipeline.FieldStartImageURI)

		if params.ControlNet != nil {
			args[ArgControlNetModelName] = orDefault(params.ControlNet.ModelName, DefaultControlNetModel)
			args[ArgSavePreprocessedInput] = params.ControlNet.Preprocess
		}

		if view.ModelName == InstructPix2PixModel {
			strength := DefaultStrength
			if view.Strength != nil {
				strength = *view.Strength
			}
			args[ArgImageGuidanceScale] = strength * ImageGuidanceScaleRate
			delete(args, ArgStrength)
		}
	}

	if hasMask {
		img, err := n.fetcher.Fetch(ctx, view.MaskImageURI, target, nil)
		if err != nil {
			return nil, fmt.Errorf("mask_image_uri: %w", err)
		}
		args[ArgMaskImage] = img
		delete(args, pipeline.FieldMaskImageURI)
	}

	dropUnsupported(args, params.UnsupportedPipelineArguments)
	return &Dispatch{Handle: HandleDiffusion, Args: args}, nil
}
