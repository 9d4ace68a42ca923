package library

import "testing"

func TestIsRemote(t *testing.T) {
	tests := []struct {
		source   string
		expected bool
	}{
		{"https://example.com/manual.html", true},
		{"http://localhost:8000/a.html", true},
		{"ftp://example.com/a.html", false},
		{"docs/*.html", false},
		{"/srv/manuals/a.html", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := IsRemote(tt.source); got != tt.expected {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.source, got, tt.expected)
		}
	}
}

func TestPageID(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{"relative file", "docs/getting-started.html", "getting-started"},
		{"absolute file", "/srv/manuals/FAQ.htm", "faq"},
		{"spaces", "docs/user guide.html", "user_guide"},
		{"url with path", "https://example.com/manuals/faq.html", "example.com_manuals_faq"},
		{"url root", "https://example.com/", "example.com"},
		{"url with port", "http://localhost:8000/a.html", "localhost_8000_a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageID(tt.source); got != tt.expected {
				t.Errorf("PageID(%q) = %q, want %q", tt.source, got, tt.expected)
			}
		})
	}
}
