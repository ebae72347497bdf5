package output

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"slices"

	"github.com/tendant/simple-generation-pipeline/internal/metrics"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Well-known output slots
const (
	SlotPrimary           = "primary"
	SlotPreprocessedInput = "preprocessed_input"
	SlotIntermediates     = "intermediates"
)

// LatentDecoder turns an engine's intermediate state into a preview image
type LatentDecoder interface {
	DecodeLatents(latents any) (image.Image, error)
}

// LatentDecoderFunc adapts a function to LatentDecoder
type LatentDecoderFunc func(latents any) (image.Image, error)

// DecodeLatents implements LatentDecoder
func (f LatentDecoderFunc) DecodeLatents(latents any) (image.Image, error) {
	return f(latents)
}

// ImageLatents accepts intermediates that are already decoded images
var ImageLatents LatentDecoder = LatentDecoderFunc(func(latents any) (image.Image, error) {
	img, ok := latents.(image.Image)
	if !ok {
		return nil, fmt.Errorf("intermediate is %T, not an image", latents)
	}
	return img, nil
})

// Processor accumulates the raw output of one job and turns it into result
// envelopes. It is owned by a single job flow and is not safe for concurrent use.
type Processor struct {
	slots         []string
	contentType   string
	outputs       []image.Image
	text          *string
	others        map[string][]image.Image
	intermediates []image.Image
}

// NewProcessor creates a processor for the requested slots. Empty arguments
// default to the primary slot and JPEG.
func NewProcessor(slots []string, contentType string) *Processor {
	if len(slots) == 0 {
		slots = []string{SlotPrimary}
	}
	if contentType == "" {
		contentType = ContentTypeJPEG
	}
	return &Processor{
		slots:       slots,
		contentType: contentType,
		others:      make(map[string][]image.Image),
	}
}

// Slots returns the configured slot names
func (p *Processor) Slots() []string {
	return slices.Clone(p.slots)
}

// ContentType returns the primary content type
func (p *Processor) ContentType() string {
	return p.contentType
}

// AddOutputs appends images to the primary slot
func (p *Processor) AddOutputs(images ...image.Image) {
	p.outputs = append(p.outputs, images...)
}

// AddText sets a text result for the primary slot
func (p *Processor) AddText(text string) {
	p.text = &text
}

// AddOtherOutputs sets an auxiliary slot, replacing earlier content
func (p *Processor) AddOtherOutputs(name string, images []image.Image) {
	p.others[name] = images
}

// NeedIntermediates reports whether progressive previews were requested
func (p *Processor) NeedIntermediates() bool {
	return slices.Contains(p.slots, SlotIntermediates)
}

// AddLatents decodes and records one intermediate preview. It does nothing
// when intermediates were not requested.
func (p *Processor) AddLatents(decoder LatentDecoder, latents any) error {
	if !p.NeedIntermediates() {
		return nil
	}
	img, err := decoder.DecodeLatents(latents)
	if err != nil {
		return fmt.Errorf("decode intermediate: %w", err)
	}
	p.intermediates = append(p.intermediates, img)
	return nil
}

// IntermediateCount returns how many previews were recorded
func (p *Processor) IntermediateCount() int {
	return len(p.intermediates)
}

// GetResults builds one envelope per configured slot that has content
func (p *Processor) GetResults() (map[string]pipeline.ResultEnvelope, error) {
	results := make(map[string]pipeline.ResultEnvelope)
	for _, slot := range p.slots {
		var (
			env pipeline.ResultEnvelope
			err error
		)
		switch {
		case slot == SlotPrimary && p.text != nil:
			env, err = MakeTextResult(*p.text)
		case slot == SlotPrimary:
			if len(p.outputs) == 0 {
				continue
			}
			env, err = p.imageResult(p.outputs)
		case slot == SlotIntermediates:
			if len(p.intermediates) == 0 {
				continue
			}
			// keep the most recent previews that fit one grid
			env, err = p.imageResult(p.intermediates[max(0, len(p.intermediates)-MaxGridImages):])
		default:
			images := p.others[slot]
			if len(images) == 0 {
				continue
			}
			env, err = p.imageResult(images)
		}
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", slot, err)
		}
		metrics.ResultBytes.WithLabelValues(slot).Add(float64(len(env.Blob)))
		results[slot] = env
	}
	return results, nil
}

func (p *Processor) imageResult(images []image.Image) (pipeline.ResultEnvelope, error) {
	img, err := PostProcess(images)
	if err != nil {
		return pipeline.ResultEnvelope{}, err
	}
	blob, err := Encode(img, p.contentType, QualityWebHigh)
	if err != nil {
		return pipeline.ResultEnvelope{}, err
	}
	thumb, err := thumbnailOf(img)
	if err != nil {
		return pipeline.ResultEnvelope{}, err
	}
	sum := sha256.Sum256(blob)
	return pipeline.ResultEnvelope{
		Blob:        blob,
		ContentType: p.contentType,
		Thumbnail:   thumb,
		SHA256Hash:  hex.EncodeToString(sum[:]),
	}, nil
}
