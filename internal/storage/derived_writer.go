package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"slices"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// DerivedWriter stores result envelopes as derived content of the job's
// parent content. Each slot becomes one derived object plus its thumbnail.
type DerivedWriter struct {
	service simplecontent.Service
}

// NewDerivedWriter creates a new derived content writer
func NewDerivedWriter(service simplecontent.Service) *DerivedWriter {
	return &DerivedWriter{
		service: service,
	}
}

// Store implements executors.ResultSink
func (dw *DerivedWriter) Store(ctx context.Context, contentID string, result *pipeline.JobResult) error {
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	for _, slot := range sortedSlots(result) {
		env := result.Results[slot]
		if _, err := dw.put(ctx, parentID, result, slot, env.ContentType, env.Blob); err != nil {
			return err
		}
		if len(env.Thumbnail) > 0 {
			if _, err := dw.put(ctx, parentID, result, slot+"_thumbnail", "image/jpeg", env.Thumbnail); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dw *DerivedWriter) put(ctx context.Context, parentID uuid.UUID, result *pipeline.JobResult, slot, contentType string, data []byte) (string, error) {
	variant := variantName(slot)
	derived, err := dw.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:       parentID,
		DerivationType: pipeline.DerivationType,
		Variant:        variant,
		Reader:         bytes.NewReader(data),
		FileName:       derivedFileName(result, slot, contentType),
		Tags:           derivedTags(result, variant),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload derived content for slot %s: %w", slot, err)
	}

	return derived.ID.String(), nil
}

// sortedSlots orders slots so variant ids stay stable across retries
func sortedSlots(result *pipeline.JobResult) []string {
	slots := make([]string, 0, len(result.Results))
	for slot := range result.Results {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	return slots
}

func derivedTags(result *pipeline.JobResult, variant string) []string {
	tags := []string{pipeline.DerivationType, variant, "handle:" + result.Handle}
	if result.NSFW {
		tags = append(tags, "nsfw")
	}
	return tags
}

func derivedFileName(result *pipeline.JobResult, slot, contentType string) string {
	return fmt.Sprintf("%s_%s%s", result.RunID, slot, extensionFor(contentType))
}

func variantName(slot string) string {
	return pipeline.DerivationType + "_" + slot
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "application/json":
		return ".json"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".dat"
}
