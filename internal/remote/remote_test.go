package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchHTMLTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<div>ad markup</div>"))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	tag, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if tag.Body != "<div>ad markup</div>" {
		t.Errorf("body = %q", tag.Body)
	}
	if tag.Markup() != tag.Body {
		t.Errorf("HTML tag should pass through unchanged, got %q", tag.Markup())
	}
}

func TestFetchJavaScriptTagWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("document.write('ad');"))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	tag, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	markup := tag.Markup()
	if !strings.HasPrefix(markup, "<script>") || !strings.HasSuffix(markup, "</script>") {
		t.Errorf("JS tag should be wrapped in a script element, got %q", markup)
	}
	if !strings.Contains(markup, "document.write('ad');") {
		t.Errorf("wrapped markup lost the body: %q", markup)
	}
}

func TestFetchRejectsBadTargets(t *testing.T) {
	f := NewFetcher(nil)

	tests := []struct {
		name string
		url  string
	}{
		{"bad scheme", "ftp://ads.example.com/tag"},
		{"file scheme", "file:///etc/passwd"},
		{"no host", "http://"},
		{"garbage", "::not-a-url::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(context.Background(), tt.url); err == nil {
				t.Errorf("Fetch(%q) error = nil, want rejection", tt.url)
			}
		})
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("Fetch() error = nil, want HTTP status error")
	}
}

func TestFetchSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	f.maxBytes = 512
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("Fetch() error = nil, want size cap error")
	}
}
