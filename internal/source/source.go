// Package source fetches readings from the external telemetry endpoint.
//
// The endpoint answers a GET with the latest reading as JSON (200), or
// signals that no reading is available (404 or 204). Every other outcome
// is a fetch failure. A fetch is a single request and is never retried.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/storage/types"
	"github.com/xtxerr/vigil/internal/validation"
)

// maxBodySize bounds the payload read from the source.
const maxBodySize = 1 << 20

// Source yields at most one reading per call. A nil reading with a nil
// error means the source had nothing to report.
type Source interface {
	Fetch(ctx context.Context) (*types.Reading, error)
}

// Option configures an HTTPSource.
type Option func(*HTTPSource) error

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSource) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		s.client = client
		return nil
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) error {
		if d < 0 {
			return fmt.Errorf("timeout cannot be negative")
		}
		s.timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *HTTPSource) error {
		s.userAgent = ua
		return nil
	}
}

// HTTPSource fetches readings over HTTP.
type HTTPSource struct {
	url       string
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTP creates a source for url.
func NewHTTP(url string, opts ...Option) (*HTTPSource, error) {
	if url == "" {
		return nil, errors.NewMissingField("source.url")
	}

	s := &HTTPSource{
		url:       url,
		client:    http.DefaultClient,
		userAgent: "vigil",
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// URL returns the endpoint this source fetches from.
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch performs one GET against the endpoint.
func (s *HTTPSource) Fetch(ctx context.Context) (*types.Reading, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFetch, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w: %w", s.url, errors.ErrFetch, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, nil
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("GET %s: unexpected status %d: %w", s.url, resp.StatusCode, errors.ErrFetch)
	}

	var r types.Reading
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode payload: %w: %w", errors.ErrInvalidReading, err)
	}
	if err := validation.ValidateReading(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
