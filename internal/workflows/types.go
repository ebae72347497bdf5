package workflows

import (
	"context"
	"image"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Handle names the execution engine a dispatch is bound for
type Handle string

const (
	HandleDiffusion       Handle = "diffusion"
	HandleStagedDiffusion Handle = "diffusion_if"
	HandleTxt2Audio       Handle = "txt2audio"
	HandleBark            Handle = "bark"
	HandleStitch          Handle = "stitch"
	HandleCaption         Handle = "caption"
	HandleTxt2Vid         Handle = "txt2vid"
	HandleVid2Vid         Handle = "vid2vid"
)

// AllHandles lists every handle the router can produce
var AllHandles = []Handle{
	HandleDiffusion,
	HandleStagedDiffusion,
	HandleTxt2Audio,
	HandleBark,
	HandleStitch,
	HandleCaption,
	HandleTxt2Vid,
	HandleVid2Vid,
}

// Argument keys written by normalizers
const (
	ArgPrompt                = "prompt"
	ArgNumInferenceSteps     = "num_inference_steps"
	ArgNumImagesPerPrompt    = "num_images_per_prompt"
	ArgHeight                = "height"
	ArgWidth                 = "width"
	ArgStrength              = "strength"
	ArgImage                 = "image"
	ArgMaskImage             = "mask_image"
	ArgPipelineType          = "pipeline_type"
	ArgSchedulerType         = "scheduler_type"
	ArgSupportsXformers      = "supports_xformers"
	ArgUpscale               = "upscale"
	ArgControlNetModelName   = "controlnet_model_name"
	ArgSavePreprocessedInput = "save_preprocessed_input"
	ArgImageGuidanceScale    = "image_guidance_scale"
)

// Model ids and class names with special handling
const (
	MaxImageSize = 1024

	BarkModel              = "suno/bark"
	StagedDiffusionPrefix  = "DeepFloyd/"
	InstructPix2PixModel   = "timbrooks/instruct-pix2pix"
	DefaultControlNetModel = "lllyasviel/control_v11p_sd15_canny"
	DefaultStrength        = 0.6
	ImageGuidanceScaleRate = 5.0

	PipelineDiffusion  = "DiffusionPipeline"
	PipelineImg2Img    = "StableDiffusionImg2ImgPipeline"
	PipelineControlNet = "StableDiffusionControlNetPipeline"
	PipelineAudioLDM   = "AudioLDMPipeline"
	SchedulerDefault   = "DPMSolverMultistepScheduler"
)

// Arguments is the engine-ready argument set
type Arguments map[string]any

// Has reports whether key is present
func (a Arguments) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Dispatch binds normalized arguments to an execution handle
type Dispatch struct {
	Handle Handle
	Args   Arguments
}

// Normalizer turns a job into engine-ready arguments
type Normalizer interface {
	Name() string
	Normalize(ctx context.Context, job pipeline.Job) (*Dispatch, error)
}

// ImageFetcher retrieves referenced input images
type ImageFetcher interface {
	Fetch(ctx context.Context, uri string, target *media.Size, control *media.ControlSpec) (image.Image, error)
}
