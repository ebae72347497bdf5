package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// HTTPDerivedWriter stores result envelopes as derived content through the
// simple-content HTTP API
type HTTPDerivedWriter struct {
	client *resty.Client
}

type derivedRequest struct {
	ParentID        string   `json:"parent_id"`
	DerivationType  string   `json:"derivation_type"`
	Variant         string   `json:"variant"`
	FileName        string   `json:"file_name"`
	MimeType        string   `json:"mime_type"`
	Tags            []string `json:"tags"`
	ContentData     string   `json:"content_data"`
	ContentEncoding string   `json:"content_encoding"`
}

type derivedResponse struct {
	ID string `json:"id"`
}

// NewHTTPDerivedWriter creates a writer for the server at baseURL
func NewHTTPDerivedWriter(baseURL string, timeout time.Duration) *HTTPDerivedWriter {
	return &HTTPDerivedWriter{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Store implements executors.ResultSink
func (dw *HTTPDerivedWriter) Store(ctx context.Context, contentID string, result *pipeline.JobResult) error {
	if _, err := uuid.Parse(contentID); err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	for _, slot := range sortedSlots(result) {
		env := result.Results[slot]
		if _, err := dw.put(ctx, contentID, result, slot, env.ContentType, env.Blob); err != nil {
			return err
		}
		if len(env.Thumbnail) > 0 {
			if _, err := dw.put(ctx, contentID, result, slot+"_thumbnail", "image/jpeg", env.Thumbnail); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dw *HTTPDerivedWriter) put(ctx context.Context, contentID string, result *pipeline.JobResult, slot, contentType string, data []byte) (string, error) {
	variant := variantName(slot)

	var out derivedResponse
	resp, err := dw.client.R().
		SetContext(ctx).
		SetPathParam("id", contentID).
		SetBody(derivedRequest{
			ParentID:        contentID,
			DerivationType:  pipeline.DerivationType,
			Variant:         variant,
			FileName:        derivedFileName(result, slot, contentType),
			MimeType:        contentType,
			Tags:            derivedTags(result, variant),
			ContentData:     base64.StdEncoding.EncodeToString(data),
			ContentEncoding: "base64",
		}).
		SetResult(&out).
		Post("/api/v1/contents/{id}/derived")
	if err != nil {
		return "", fmt.Errorf("failed to create derived content for slot %s: %w", slot, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create derived for slot %s failed with status %d: %s", slot, resp.StatusCode(), resp.String())
	}
	if out.ID == "" {
		return "", fmt.Errorf("create derived for slot %s: no ID in response", slot)
	}

	return out.ID, nil
}
