package workflows

import (
	"context"

	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Default step counts for non-image generation
const (
	DefaultAudioSteps = 25
	DefaultVideoSteps = 25
)

// mediaNormalizer handles prompt-driven generation that needs no input
// images: text-to-audio and text-to-video.
type mediaNormalizer struct {
	name            string
	handle          Handle
	defaultPipeline string
	defaultSteps    int
	strip           []string
	types           *registry.Registry
}

func audioNormalizer(types *registry.Registry) *mediaNormalizer {
	return &mediaNormalizer{
		name:            "txt2audio",
		handle:          HandleTxt2Audio,
		defaultPipeline: PipelineAudioLDM,
		defaultSteps:    DefaultAudioSteps,
		types:           types,
	}
}

func videoNormalizer(types *registry.Registry) *mediaNormalizer {
	return &mediaNormalizer{
		name:            "txt2vid",
		handle:          HandleTxt2Vid,
		defaultPipeline: PipelineDiffusion,
		defaultSteps:    DefaultVideoSteps,
		strip:           []string{ArgNumImagesPerPrompt},
		types:           types,
	}
}

func (n *mediaNormalizer) Name() string { return n.name }

func (n *mediaNormalizer) Normalize(_ context.Context, job pipeline.Job) (*Dispatch, error) {
	var view baseView
	if err := decodeView(map[string]any(job), &view); err != nil {
		return nil, err
	}

	args := newArguments(job)
	params, err := popParameters(args)
	if err != nil {
		return nil, err
	}

	setDefault(args, ArgPrompt, "")
	setDefault(args, ArgNumInferenceSteps, n.defaultSteps)
	for _, key := range n.strip {
		delete(args, key)
	}

	pipelineName := orDefault(params.PipelineType, n.defaultPipeline)
	if err := resolveTypes(n.types, args, pipelineName, orDefault(params.SchedulerType, SchedulerDefault)); err != nil {
		return nil, err
	}

	dropUnsupported(args, params.UnsupportedPipelineArguments)
	return &Dispatch{Handle: n.handle, Args: args}, nil
}
