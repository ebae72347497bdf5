package media

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultFetchTimeout bounds a single probe or download
const DefaultFetchTimeout = 30 * time.Second

// HTTPSource reads inputs over http(s). Redirects are followed for both the
// probe and the download.
type HTTPSource struct {
	client *resty.Client
}

// NewHTTPSource creates an http source with its own resty client
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return NewHTTPSourceWithClient(client)
}

// NewHTTPSourceWithClient creates an http source around an existing client
func NewHTTPSourceWithClient(client *resty.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

// Probe issues a HEAD request
func (s *HTTPSource) Probe(ctx context.Context, uri string) (Probe, error) {
	resp, err := s.client.R().SetContext(ctx).Head(uri)
	if err != nil {
		return Probe{}, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if resp.IsError() {
		return Probe{}, fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode())
	}

	probe := Probe{ContentType: resp.Header().Get("Content-Type")}
	if cl := resp.Header().Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil {
			return Probe{}, fmt.Errorf("%w: invalid content length %q", ErrProbeFailed, cl)
		}
		probe.ContentLength = n
	} else if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		probe.ContentLength = resp.RawResponse.ContentLength
	}
	return probe, nil
}

// Open issues a GET request and hands back the unread body
func (s *HTTPSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	body := resp.RawBody()
	if resp.IsError() {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode())
	}
	return body, nil
}
