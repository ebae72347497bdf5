// Package registry holds the closed table of engine classes a job may name.
// Names are resolved against entries registered at process start; nothing is
// loaded dynamically.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownType is returned when a (library, class) pair is not registered
var ErrUnknownType = errors.New("unknown engine type")

// Kind distinguishes pipeline classes from scheduler classes
type Kind string

const (
	KindPipeline  Kind = "pipeline"
	KindScheduler Kind = "scheduler"
)

// LibraryDiffusers is the library id used by all built-in entries
const LibraryDiffusers = "diffusers"

// TypeRef identifies a constructible engine class
type TypeRef struct {
	Library string `json:"library"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
}

func (t TypeRef) String() string {
	return t.Library + "." + t.Name
}

type key struct {
	library string
	name    string
}

// Registry maps (library, class) names to type references
type Registry struct {
	mu      sync.RWMutex
	entries map[key]TypeRef
}

// New creates an empty registry
func New() *Registry {
	return &Registry{entries: make(map[key]TypeRef)}
}

// Register adds a class. Registering the same pair twice overwrites the kind.
func (r *Registry) Register(library, name string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key{library, name}] = TypeRef{Library: library, Name: name, Kind: kind}
}

// Lookup resolves a class by library and name
func (r *Registry) Lookup(library, name string) (TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.entries[key{library, name}]
	if !ok {
		return TypeRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownType, library, name)
	}
	return ref, nil
}

// LookupPipeline resolves a class and requires it to be a pipeline
func (r *Registry) LookupPipeline(library, name string) (TypeRef, error) {
	return r.lookupKind(library, name, KindPipeline)
}

// LookupScheduler resolves a class and requires it to be a scheduler
func (r *Registry) LookupScheduler(library, name string) (TypeRef, error) {
	return r.lookupKind(library, name, KindScheduler)
}

func (r *Registry) lookupKind(library, name string, kind Kind) (TypeRef, error) {
	ref, err := r.Lookup(library, name)
	if err != nil {
		return TypeRef{}, err
	}
	if ref.Kind != kind {
		return TypeRef{}, fmt.Errorf("%w: %s is a %s, not a %s", ErrUnknownType, ref, ref.Kind, kind)
	}
	return ref, nil
}

// Names lists the registered class names for a library, sorted
func (r *Registry) Names(library string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for k := range r.entries {
		if k.library == library {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

var builtinPipelines = []string{
	"DiffusionPipeline",
	"StableDiffusionPipeline",
	"StableDiffusionImg2ImgPipeline",
	"StableDiffusionInpaintPipeline",
	"StableDiffusionControlNetPipeline",
	"StableDiffusionControlNetImg2ImgPipeline",
	"StableDiffusionInstructPix2PixPipeline",
	"StableDiffusionUpscalePipeline",
	"StableDiffusionLatentUpscalePipeline",
	"StableDiffusionXLPipeline",
	"StableDiffusionXLImg2ImgPipeline",
	"StableDiffusionXLInpaintPipeline",
	"StableDiffusionXLControlNetPipeline",
	"KandinskyV22Pipeline",
	"IFPipeline",
	"AudioLDMPipeline",
	"AudioLDM2Pipeline",
	"TextToVideoSDPipeline",
	"VideoToVideoSDPipeline",
}

var builtinSchedulers = []string{
	"DPMSolverMultistepScheduler",
	"DPMSolverSinglestepScheduler",
	"DDIMScheduler",
	"DDPMScheduler",
	"PNDMScheduler",
	"LMSDiscreteScheduler",
	"EulerDiscreteScheduler",
	"EulerAncestralDiscreteScheduler",
	"HeunDiscreteScheduler",
	"KDPM2DiscreteScheduler",
	"KDPM2AncestralDiscreteScheduler",
	"UniPCMultistepScheduler",
	"DEISMultistepScheduler",
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry populated with the built-in classes
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
		for _, name := range builtinPipelines {
			defaultRegistry.Register(LibraryDiffusers, name, KindPipeline)
		}
		for _, name := range builtinSchedulers {
			defaultRegistry.Register(LibraryDiffusers, name, KindScheduler)
		}
	})
	return defaultRegistry
}
