package workflows

import (
	"context"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// passthrough forwards the job as-is to engines that do their own parsing
type passthrough struct {
	name   string
	handle Handle
}

func (p passthrough) Name() string { return p.name }

func (p passthrough) Normalize(_ context.Context, job pipeline.Job) (*Dispatch, error) {
	return &Dispatch{Handle: p.handle, Args: newArguments(job)}, nil
}
