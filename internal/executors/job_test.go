package executors

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-generation-pipeline/internal/engine"
	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string, *media.Size, *media.ControlSpec) (image.Image, error) {
	return imaging.New(16, 16, color.White), nil
}

type recordingEngine struct {
	calls  int
	args   workflows.Arguments
	result *engine.Result
	err    error
	latent int
}

func (e *recordingEngine) Run(_ context.Context, args workflows.Arguments, out *output.Processor) (*engine.Result, error) {
	e.calls++
	e.args = args
	for i := 0; i < e.latent; i++ {
		if err := out.AddLatents(output.ImageLatents, imaging.New(4, 4, color.Gray{Y: uint8(i * 10)})); err != nil {
			return nil, err
		}
	}
	return e.result, e.err
}

type memorySink struct {
	stored map[string]*pipeline.JobResult
	err    error
}

func (s *memorySink) Store(_ context.Context, contentID string, result *pipeline.JobResult) error {
	if s.err != nil {
		return s.err
	}
	if s.stored == nil {
		s.stored = make(map[string]*pipeline.JobResult)
	}
	s.stored[contentID] = result
	return nil
}

func images(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = imaging.New(8, 8, color.NRGBA{R: uint8(i * 20), A: 255})
	}
	return out
}

func newExecutor(handle workflows.Handle, eng engine.Engine, opts ...Option) *JobExecutor {
	engines := engine.NewRegistry()
	engines.Register(handle, eng)
	router := workflows.NewRouter(stubFetcher{}, registry.Default(), nil)
	return NewJobExecutor(router, engines, opts...)
}

func TestJobExecutor_ImageJob(t *testing.T) {
	eng := &recordingEngine{result: &engine.Result{Images: images(4), NSFWContentDetected: []bool{false, false, true, false}}}
	exec := newExecutor(workflows.HandleDiffusion, eng)

	res, err := exec.Execute(context.Background(), "run-1", pipeline.ProcessRequest{
		Job: pipeline.Job{"model_name": "m", "prompt": "cat", "content_type": "image/png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, string(workflows.HandleDiffusion), res.Handle)
	assert.True(t, res.NSFW)
	require.Contains(t, res.Results, output.SlotPrimary)
	assert.Equal(t, output.ContentTypePNG, res.Results[output.SlotPrimary].ContentType)

	assert.NotContains(t, eng.args, pipeline.FieldContentType)
	assert.NotContains(t, eng.args, pipeline.FieldOutputs)
	assert.NotContains(t, eng.args, ArgCallbackSteps)
}

func TestJobExecutor_Intermediates(t *testing.T) {
	eng := &recordingEngine{result: &engine.Result{Images: images(1)}, latent: 3}
	exec := newExecutor(workflows.HandleDiffusion, eng)

	res, err := exec.Execute(context.Background(), "run-2", pipeline.ProcessRequest{
		Job: pipeline.Job{"model_name": "m", "outputs": []any{"primary", "intermediates"}},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultIntermediateEvery, eng.args[ArgCallbackSteps])
	assert.Contains(t, res.Results, output.SlotPrimary)
	assert.Contains(t, res.Results, output.SlotIntermediates)
}

func TestJobExecutor_TextResult(t *testing.T) {
	caption := "two dogs playing"
	eng := &recordingEngine{result: &engine.Result{Text: &caption}}
	exec := newExecutor(workflows.HandleCaption, eng)

	res, err := exec.Execute(context.Background(), "run-3", pipeline.ProcessRequest{
		Job: pipeline.Job{"workflow": "img2txt", "model_name": "blip", "start_image_uri": "http://example.com/a.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, output.ContentTypeJSON, res.Results[output.SlotPrimary].ContentType)
	assert.Contains(t, eng.args, workflows.ArgImage)
}

func TestJobExecutor_OtherOutputs(t *testing.T) {
	eng := &recordingEngine{result: &engine.Result{
		Images:       images(1),
		OtherOutputs: map[string][]image.Image{output.SlotPreprocessedInput: images(1)},
	}}
	exec := newExecutor(workflows.HandleDiffusion, eng)

	res, err := exec.Execute(context.Background(), "run-4", pipeline.ProcessRequest{
		Job: pipeline.Job{"model_name": "m", "outputs": "preprocessed_input"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.Contains(t, res.Results, output.SlotPreprocessedInput)
}

func TestJobExecutor_ValidationFailureSkipsEngine(t *testing.T) {
	eng := &recordingEngine{result: &engine.Result{}}
	exec := newExecutor(workflows.HandleDiffusion, eng)

	_, err := exec.Execute(context.Background(), "run-5", pipeline.ProcessRequest{
		Job: pipeline.Job{"model_name": "m", "height": 4096, "width": 4096},
	})
	require.ErrorIs(t, err, workflows.ErrImageSizeLimit)
	assert.True(t, IsValidationError(err))
	assert.Zero(t, eng.calls)
}

func TestJobExecutor_EmptyJob(t *testing.T) {
	exec := newExecutor(workflows.HandleDiffusion, &recordingEngine{})
	_, err := exec.Execute(context.Background(), "run-6", pipeline.ProcessRequest{})
	assert.ErrorIs(t, err, workflows.ErrInvalidJob)
}

func TestJobExecutor_MissingEngine(t *testing.T) {
	exec := newExecutor(workflows.HandleCaption, &recordingEngine{})
	_, err := exec.Execute(context.Background(), "run-7", pipeline.ProcessRequest{
		Job: pipeline.Job{"workflow": "stitch", "model_name": "m"},
	})
	require.ErrorIs(t, err, engine.ErrEngineNotFound)
	assert.True(t, IsValidationError(err))
}

func TestJobExecutor_EngineErrorPropagates(t *testing.T) {
	boom := errors.New("gpu lost")
	exec := newExecutor(workflows.HandleDiffusion, &recordingEngine{err: boom})

	_, err := exec.Execute(context.Background(), "run-8", pipeline.ProcessRequest{Job: pipeline.Job{"model_name": "m"}})
	require.ErrorIs(t, err, boom)
	assert.False(t, IsValidationError(err))
}

func TestJobExecutor_TooManyImages(t *testing.T) {
	exec := newExecutor(workflows.HandleDiffusion, &recordingEngine{result: &engine.Result{Images: images(10)}})

	_, err := exec.Execute(context.Background(), "run-9", pipeline.ProcessRequest{Job: pipeline.Job{"model_name": "m"}})
	require.ErrorIs(t, err, output.ErrTooManyImages)
	assert.True(t, IsValidationError(err))
}

func TestJobExecutor_ResultSink(t *testing.T) {
	sink := &memorySink{}
	exec := newExecutor(workflows.HandleDiffusion, &recordingEngine{result: &engine.Result{Images: images(1)}}, WithResultSink(sink))

	_, err := exec.Execute(context.Background(), "run-10", pipeline.ProcessRequest{Job: pipeline.Job{"model_name": "m"}})
	require.NoError(t, err)
	assert.Empty(t, sink.stored)

	_, err = exec.Execute(context.Background(), "run-11", pipeline.ProcessRequest{
		ContentID: "content-1",
		Job:       pipeline.Job{"model_name": "m"},
	})
	require.NoError(t, err)
	require.Contains(t, sink.stored, "content-1")
	assert.Equal(t, "run-11", sink.stored["content-1"].RunID)

	sink.err = errors.New("disk full")
	_, err = exec.Execute(context.Background(), "run-12", pipeline.ProcessRequest{
		ContentID: "content-2",
		Job:       pipeline.Job{"model_name": "m"},
	})
	assert.ErrorContains(t, err, "disk full")
}

func TestJobExecutor_InputNotMutated(t *testing.T) {
	exec := newExecutor(workflows.HandleDiffusion, &recordingEngine{result: &engine.Result{Images: images(1)}})
	job := pipeline.Job{"model_name": "m", "outputs": []any{"primary"}, "parameters": map[string]any{}}

	_, err := exec.Execute(context.Background(), "run-13", pipeline.ProcessRequest{Job: job})
	require.NoError(t, err)
	assert.Contains(t, job, "outputs")
	assert.Contains(t, job, "parameters")
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", media.ErrNotImage)))
	assert.True(t, IsValidationError(registry.ErrUnknownType))
	assert.False(t, IsValidationError(media.ErrDownloadFailed))
	assert.False(t, IsValidationError(nil))
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "job-abc", WorkflowID(pipeline.ProcessRequest{JobID: "abc"}))
	a := WorkflowID(pipeline.ProcessRequest{})
	b := WorkflowID(pipeline.ProcessRequest{})
	assert.NotEqual(t, a, b)
}

func TestJobIDFromRunID(t *testing.T) {
	jobID, ok := JobIDFromRunID(WorkflowID(pipeline.ProcessRequest{JobID: "abc"}))
	assert.True(t, ok)
	assert.Equal(t, "abc", jobID)

	_, ok = JobIDFromRunID("job-")
	assert.False(t, ok)
	_, ok = JobIDFromRunID("run-123")
	assert.False(t, ok)
}
