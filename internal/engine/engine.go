package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

var (
	// ErrEngineNotFound is returned when no engine is registered for a handle
	ErrEngineNotFound = errors.New("engine not found")

	// ErrEngineFailed is returned when an engine reports a failed run
	ErrEngineFailed = errors.New("engine run failed")
)

// Result is the raw output of one engine run
type Result struct {
	Images              []image.Image
	Text                *string
	NSFWContentDetected []bool
	OtherOutputs        map[string][]image.Image
}

// NSFW reports whether any output was flagged
func (r *Result) NSFW() bool {
	return slices.Contains(r.NSFWContentDetected, true)
}

// Engine executes normalized arguments. Implementations may push
// progressive previews into out while running; final outputs are returned.
type Engine interface {
	Run(ctx context.Context, args workflows.Arguments, out *output.Processor) (*Result, error)
}

// Func adapts a function to Engine
type Func func(ctx context.Context, args workflows.Arguments, out *output.Processor) (*Result, error)

// Run implements Engine
func (f Func) Run(ctx context.Context, args workflows.Arguments, out *output.Processor) (*Result, error) {
	return f(ctx, args, out)
}

// Registry maps execution handles to engines
type Registry struct {
	mu      sync.RWMutex
	engines map[workflows.Handle]Engine
}

// NewRegistry creates an empty engine registry
func NewRegistry() *Registry {
	return &Registry{engines: make(map[workflows.Handle]Engine)}
}

// Register binds an engine to a handle, replacing any previous binding
func (r *Registry) Register(handle workflows.Handle, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[handle] = e
}

// Lookup returns the engine bound to handle
func (r *Registry) Lookup(handle workflows.Handle) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, handle)
	}
	return e, nil
}

// Handles returns the registered handles in sorted order
func (r *Registry) Handles() []workflows.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]workflows.Handle, 0, len(r.engines))
	for h := range r.engines {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles
}
