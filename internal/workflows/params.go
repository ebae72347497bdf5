package workflows

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

var validate = validator.New()

// Parameters are the workflow-tuning options carried under "parameters".
// They are consumed by normalizers and never forwarded.
type Parameters struct {
	PipelineType                 string             `mapstructure:"pipeline_type"`
	SchedulerType                string             `mapstructure:"scheduler_type"`
	UnsupportedPipelineArguments []string           `mapstructure:"unsupported_pipeline_arguments"`
	SupportsXformers             *bool              `mapstructure:"supports_xformers"`
	Upscale                      *bool              `mapstructure:"upscale"`
	ControlNet                   *media.ControlSpec `mapstructure:"controlnet"`
}

// baseView is the typed part every normalized workflow shares
type baseView struct {
	ModelName         string `mapstructure:"model_name" validate:"required"`
	NumInferenceSteps *int   `mapstructure:"num_inference_steps"`
}

// decodeView decodes the loose job map into a typed view and validates it
func decodeView(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return nil
}

// popParameters removes "parameters" from args and decodes it
func popParameters(args Arguments) (Parameters, error) {
	var params Parameters
	raw, ok := args[pipeline.FieldParameters]
	delete(args, pipeline.FieldParameters)
	if !ok || raw == nil {
		return params, nil
	}
	if err := decodeView(raw, &params); err != nil {
		return params, fmt.Errorf("parameters: %w", err)
	}
	return params, nil
}

// newArguments copies the job and strips the workflow tag
func newArguments(job pipeline.Job) Arguments {
	args := Arguments(job.Clone())
	delete(args, pipeline.FieldWorkflow)
	return args
}

func setDefault(args Arguments, key string, value any) {
	if !args.Has(key) {
		args[key] = value
	}
}

// resolveTypes looks up the pipeline and scheduler classes by name
func resolveTypes(types *registry.Registry, args Arguments, pipelineName, schedulerName string) error {
	pipelineRef, err := types.LookupPipeline(registry.LibraryDiffusers, pipelineName)
	if err != nil {
		return fmt.Errorf("pipeline_type: %w", err)
	}
	schedulerRef, err := types.LookupScheduler(registry.LibraryDiffusers, schedulerName)
	if err != nil {
		return fmt.Errorf("scheduler_type: %w", err)
	}
	args[ArgPipelineType] = pipelineRef
	args[ArgSchedulerType] = schedulerRef
	return nil
}

// dropUnsupported removes arguments the target engine variant does not accept
func dropUnsupported(args Arguments, names []string) {
	for _, name := range names {
		delete(args, name)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
