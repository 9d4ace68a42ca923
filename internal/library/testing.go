package library

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockFetcher serves configured content per source and records calls.
// It is exported for use by other packages' tests.
type MockFetcher struct {
	mu        sync.Mutex
	responses map[string]MockResponse
	calls     []string
}

// MockResponse is the content or error returned for a source.
type MockResponse struct {
	Content []byte
	Err     error
}

// NewMockFetcher creates an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{responses: make(map[string]MockResponse)}
}

// SetPage configures the HTML returned for source.
func (m *MockFetcher) SetPage(source, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[source] = MockResponse{Content: []byte(html)}
}

// SetError configures source to fail with err.
func (m *MockFetcher) SetError(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[source] = MockResponse{Err: err}
}

// Fetch returns the configured response.
func (m *MockFetcher) Fetch(ctx context.Context, page Page) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, page.Source)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, ok := m.responses[page.Source]
	if !ok {
		return nil, errors.New("no mock response configured for: " + page.Source)
	}
	return resp.Content, resp.Err
}

// Calls returns the fetched sources in call order.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MustGetCallCount fails the test unless source was fetched n times.
func (m *MockFetcher) MustGetCallCount(t *testing.T, source string, n int) {
	t.Helper()
	count := 0
	for _, c := range m.Calls() {
		if c == source {
			count++
		}
	}
	if count != n {
		t.Fatalf("Expected %d fetches of %s, got %d", n, source, count)
	}
}
