package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

// DefaultTimeout bounds a single remote engine call
const DefaultTimeout = 10 * time.Minute

// HTTPEngine talks to a remote inference sidecar that hosts the model
// runtimes. One client serves every handle.
type HTTPEngine struct {
	client *resty.Client
	logger *log.Logger
}

// NewHTTPEngine creates a client for the sidecar at baseURL
func NewHTTPEngine(baseURL string, timeout time.Duration, logger *log.Logger) *HTTPEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPEngine{client: client, logger: logger}
}

// Engine returns an Engine bound to handle
func (h *HTTPEngine) Engine(handle workflows.Handle) Engine {
	return Func(func(ctx context.Context, args workflows.Arguments, out *output.Processor) (*Result, error) {
		return h.run(ctx, handle, args, out)
	})
}

// RegisterAll binds every known handle in reg to this client
func (h *HTTPEngine) RegisterAll(reg *Registry) {
	for _, handle := range workflows.AllHandles {
		reg.Register(handle, h.Engine(handle))
	}
}

func (h *HTTPEngine) run(ctx context.Context, handle workflows.Handle, args workflows.Arguments, out *output.Processor) (*Result, error) {
	wireArgs, err := encodeArguments(args)
	if err != nil {
		return nil, err
	}

	var body runResponse
	var failure errorResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParam("handle", string(handle)).
		SetBody(runRequest{
			Arguments:     wireArgs,
			Outputs:       out.Slots(),
			ContentType:   out.ContentType(),
			Intermediates: out.NeedIntermediates(),
		}).
		SetResult(&body).
		SetError(&failure).
		Post("/v1/engines/{handle}")
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", handle, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrEngineFailed, handle, resp.StatusCode(), failure.Error)
	}

	for _, blob := range body.Intermediates {
		img, err := decodeImage(blob)
		if err != nil {
			return nil, err
		}
		if err := out.AddLatents(output.ImageLatents, img); err != nil {
			return nil, err
		}
	}

	images, err := decodeImages(body.Images)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Images:              images,
		Text:                body.Text,
		NSFWContentDetected: body.NSFWContentDetected,
	}
	if len(body.OtherOutputs) > 0 {
		result.OtherOutputs = make(map[string][]image.Image, len(body.OtherOutputs))
		for slot, blobs := range body.OtherOutputs {
			imgs, err := decodeImages(blobs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", slot, err)
			}
			result.OtherOutputs[slot] = imgs
		}
	}

	h.logger.Debug("Engine run finished", "handle", handle, "images", len(result.Images), "intermediates", len(body.Intermediates))
	return result, nil
}

// Preprocess implements media.Preprocessor using the sidecar's control-image endpoint
func (h *HTTPEngine) Preprocess(ctx context.Context, img image.Image, spec media.ControlSpec) (image.Image, error) {
	wire, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	var body preprocessResponse
	var failure errorResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(preprocessRequest{Image: wire, Control: spec}).
		SetResult(&body).
		SetError(&failure).
		Post("/v1/preprocess")
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: preprocess: status %d: %s", ErrEngineFailed, resp.StatusCode(), failure.Error)
	}
	return decodeImage(body.Image)
}
