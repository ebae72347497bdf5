package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-generation-pipeline/internal/media"
)

// ContentSource serves content://<id> inputs from a simple-content service
type ContentSource struct {
	service simplecontent.Service
}

// NewContentSource creates a media source backed by simple-content
func NewContentSource(service simplecontent.Service) *ContentSource {
	return &ContentSource{service: service}
}

// Probe reads the stored mime type and size without downloading
func (s *ContentSource) Probe(ctx context.Context, uri string) (media.Probe, error) {
	id, err := contentIDFromURI(uri)
	if err != nil {
		return media.Probe{}, fmt.Errorf("%w: %w", media.ErrProbeFailed, err)
	}

	details, err := s.service.GetContentDetails(ctx, id)
	if err != nil {
		return media.Probe{}, fmt.Errorf("%w: failed to get content details: %w", media.ErrProbeFailed, err)
	}

	return media.Probe{
		ContentType:   details.MimeType,
		ContentLength: details.FileSize,
	}, nil
}

// Open downloads the content body
func (s *ContentSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	id, err := contentIDFromURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}

	reader, err := s.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download content: %w", media.ErrDownloadFailed, err)
	}

	return reader, nil
}
