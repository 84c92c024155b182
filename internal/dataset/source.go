package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source fetches one snapshot resource.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// HTTPSource fetches a snapshot from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPSource) Describe() string { return s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return body, nil
}

// FileSource reads a snapshot from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Describe() string { return s.Path }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return body, nil
}
