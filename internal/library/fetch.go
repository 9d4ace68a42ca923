package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	// ErrPageTooLarge indicates a page above the configured size limit.
	ErrPageTooLarge = errors.New("page exceeds max page size")

	// ErrBinaryContent indicates a source that does not look like text.
	ErrBinaryContent = errors.New("page content is binary")
)

// Fetcher loads the raw bytes of a manual source.
type Fetcher interface {
	Fetch(ctx context.Context, page Page) ([]byte, error)
}

// SourceFetcher reads local files and downloads remote pages.
type SourceFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewSourceFetcher creates a fetcher with a per-request timeout.
func NewSourceFetcher(timeout time.Duration, maxSize int64) *SourceFetcher {
	return &SourceFetcher{
		client:  &http.Client{Timeout: timeout},
		maxSize: maxSize,
	}
}

// Fetch returns the page content, enforcing the size limit and rejecting
// binary content.
func (f *SourceFetcher) Fetch(ctx context.Context, page Page) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if page.Remote {
		data, err = f.fetchRemote(ctx, page.Source)
	} else {
		data, err = f.fetchFile(page.Source)
	}
	if err != nil {
		return nil, err
	}
	if IsBinary(data) {
		return nil, ErrBinaryContent
	}
	return data, nil
}

func (f *SourceFetcher) fetchFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat page: %w", err)
	}
	if info.Size() > f.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPageTooLarge, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return data, nil
}

func (f *SourceFetcher) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrPageTooLarge
	}
	return data, nil
}

// IsBinary checks if the content appears to be binary by looking for null bytes
// in the first 512 bytes. This is a heuristic used by git and other tools.
func IsBinary(content []byte) bool {
	checkLen := min(len(content), 512)
	for i := range checkLen {
		if content[i] == 0 {
			return true
		}
	}
	return false
}
