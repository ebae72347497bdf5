package workflows

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Rule binds a job predicate to the normalizer that handles matching jobs
type Rule struct {
	Name       string
	Match      func(job pipeline.Job) bool
	Normalizer Normalizer
}

// Router selects a normalizer for a job. Rules are evaluated in order and
// the first match wins; jobs matching no rule use the default normalizer.
type Router struct {
	rules    []Rule
	fallback Normalizer
	logger   *log.Logger
}

// NewRouter builds the standard routing table
func NewRouter(fetcher ImageFetcher, types *registry.Registry, logger *log.Logger) *Router {
	if types == nil {
		types = registry.Default()
	}
	if logger == nil {
		logger = log.Default()
	}

	image := &imageNormalizer{fetcher: fetcher, types: types}
	return &Router{
		rules: []Rule{
			{
				Name:       "bark",
				Match:      func(job pipeline.Job) bool { return isWorkflow(job, pipeline.WorkflowTxt2Audio) && job.String(pipeline.FieldModelName) == BarkModel },
				Normalizer: passthrough{name: "bark", handle: HandleBark},
			},
			{
				Name:       "txt2audio",
				Match:      workflowIs(pipeline.WorkflowTxt2Audio),
				Normalizer: audioNormalizer(types),
			},
			{
				Name:       "stitch",
				Match:      workflowIs(pipeline.WorkflowStitch),
				Normalizer: passthrough{name: "stitch", handle: HandleStitch},
			},
			{
				Name:       "caption",
				Match:      workflowIs(pipeline.WorkflowImg2Txt),
				Normalizer: &captionNormalizer{fetcher: fetcher},
			},
			{
				Name:       "vid2vid",
				Match:      workflowIs(pipeline.WorkflowVid2Vid),
				Normalizer: passthrough{name: "vid2vid", handle: HandleVid2Vid},
			},
			{
				Name:       "txt2vid",
				Match:      workflowIs(pipeline.WorkflowTxt2Vid),
				Normalizer: videoNormalizer(types),
			},
			{
				Name: "staged_diffusion",
				Match: func(job pipeline.Job) bool {
					return strings.HasPrefix(job.String(pipeline.FieldModelName), StagedDiffusionPrefix)
				},
				Normalizer: passthrough{name: "staged_diffusion", handle: HandleStagedDiffusion},
			},
		},
		fallback: image,
		logger:   logger,
	}
}

// Route picks the normalizer for job and returns a copy of the job with
// the workflow tag removed. The input job is never modified.
func (r *Router) Route(job pipeline.Job) (Normalizer, pipeline.Job) {
	cleaned := job.Clone()
	delete(cleaned, pipeline.FieldWorkflow)

	for _, rule := range r.rules {
		if rule.Match(job) {
			return rule.Normalizer, cleaned
		}
	}

	if workflow := job.String(pipeline.FieldWorkflow); workflow != "" {
		r.logger.Debug("Workflow not matched, using default route", "workflow", workflow)
	}
	return r.fallback, cleaned
}

// Normalize routes job and runs the selected normalizer
func (r *Router) Normalize(ctx context.Context, job pipeline.Job) (*Dispatch, error) {
	normalizer, cleaned := r.Route(job)
	r.logger.Debug("Routing job", "route", normalizer.Name(), "model", job.String(pipeline.FieldModelName))
	return normalizer.Normalize(ctx, cleaned)
}

// RuleNames returns the rule names in evaluation order
func (r *Router) RuleNames() []string {
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	return names
}

func isWorkflow(job pipeline.Job, workflow string) bool {
	return job.String(pipeline.FieldWorkflow) == workflow
}

func workflowIs(workflow string) func(pipeline.Job) bool {
	return func(job pipeline.Job) bool { return isWorkflow(job, workflow) }
}
