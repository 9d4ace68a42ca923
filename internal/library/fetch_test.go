package library

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSourceFetcher_File(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "setup.html", setupPage)
	big := createTestFile(t, dir, "big.html", strings.Repeat("x", 2048))
	binary := createTestFile(t, dir, "image.html", "PNG\x00\x01")

	fetcher := NewSourceFetcher(time.Second, 1024*1024)
	small := NewSourceFetcher(time.Second, 1024)

	tests := []struct {
		name    string
		fetcher *SourceFetcher
		source  string
		wantErr error
	}{
		{"reads file", fetcher, path, nil},
		{"too large", small, big, ErrPageTooLarge},
		{"binary", fetcher, binary, ErrBinaryContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.fetcher.Fetch(context.Background(), Page{Source: tt.source})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if string(data) != setupPage {
				t.Error("Expected file content")
			}
		})
	}

	if _, err := fetcher.Fetch(context.Background(), Page{Source: dir + "/missing.html"}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSourceFetcher_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/setup.html":
			if !strings.Contains(r.Header.Get("Accept"), "text/html") {
				t.Errorf("Expected HTML accept header, got %q", r.Header.Get("Accept"))
			}
			_, _ = w.Write([]byte(setupPage))
		case "/big.html":
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewSourceFetcher(time.Second, 1024*2)
	ctx := context.Background()

	data, err := fetcher.Fetch(ctx, Page{Source: server.URL + "/setup.html", Remote: true})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != setupPage {
		t.Error("Expected served page")
	}

	if _, err := fetcher.Fetch(ctx, Page{Source: server.URL + "/big.html", Remote: true}); !errors.Is(err, ErrPageTooLarge) {
		t.Errorf("Expected ErrPageTooLarge, got %v", err)
	}
	if _, err := fetcher.Fetch(ctx, Page{Source: server.URL + "/missing.html", Remote: true}); err == nil {
		t.Error("Expected error for 404")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := fetcher.Fetch(cancelled, Page{Source: server.URL + "/setup.html", Remote: true}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		content  string
		expected bool
	}{
		{"<html></html>", false},
		{"", false},
		{"abc\x00def", true},
		{strings.Repeat("a", 600) + "\x00", false},
	}
	for _, tt := range tests {
		if got := IsBinary([]byte(tt.content)); got != tt.expected {
			t.Errorf("IsBinary(%q...) = %v, want %v", tt.content[:min(len(tt.content), 10)], got, tt.expected)
		}
	}
}

func TestViewport(t *testing.T) {
	svc, _ := newTestService(t)
	lp, err := svc.lookup(setupID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if lp.viewport.Last() != nil {
		t.Error("Expected no scroll target before a jump")
	}
	lp.module.JumpTo("sign-in", "#section1")
	target := lp.viewport.Last()
	if target == nil {
		t.Fatal("Expected a scroll target")
	}
	if target.Tag != "h4" || target.ID != "sign-in" || target.Text != "Sign-in Process" {
		t.Errorf("Unexpected target: %+v", target)
	}
}
