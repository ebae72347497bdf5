package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tendant/simple-generation-pipeline/internal/media"
)

// HTTPContentSource serves content://<id> inputs from a remote simple-content
// server through its download endpoint
type HTTPContentSource struct {
	baseURL string
	http    *media.HTTPSource
}

// NewHTTPContentSource creates a content source for the server at baseURL
func NewHTTPContentSource(baseURL string, timeout time.Duration) *HTTPContentSource {
	return &HTTPContentSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    media.NewHTTPSource(timeout),
	}
}

// DownloadURL returns the server URL for a content URI
func (s *HTTPContentSource) DownloadURL(uri string) (string, error) {
	id, err := contentIDFromURI(uri)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/v1/contents/%s/download", s.baseURL, id), nil
}

// Probe issues a HEAD against the download endpoint
func (s *HTTPContentSource) Probe(ctx context.Context, uri string) (media.Probe, error) {
	target, err := s.DownloadURL(uri)
	if err != nil {
		return media.Probe{}, fmt.Errorf("%w: %w", media.ErrProbeFailed, err)
	}
	return s.http.Probe(ctx, target)
}

// Open downloads the content body
func (s *HTTPContentSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	target, err := s.DownloadURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}
	return s.http.Open(ctx, target)
}
