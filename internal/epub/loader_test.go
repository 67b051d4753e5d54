package epub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	data, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "archive-bytes" {
		t.Fatalf("Fetch() = %q", data)
	}
}

func TestHTTPFetcher_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status in message, got %v", err)
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPFetcher(50 * time.Millisecond).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch on timeout, got %v", err)
	}
}

func TestCacheBustURL(t *testing.T) {
	tests := []struct {
		url     string
		attempt int
		want    string
	}{
		{"https://cdn.example.com/book.epub", 0, "https://cdn.example.com/book.epub"},
		{"https://cdn.example.com/book.epub", 2, "https://cdn.example.com/book.epub?retry=2"},
		{"https://cdn.example.com/book.epub?v=1", 1, "https://cdn.example.com/book.epub?retry=1&v=1"},
		{"https://s3.example.com/b.epub?X-Amz-Signature=abc", 3, "https://s3.example.com/b.epub?X-Amz-Signature=abc"},
	}
	for _, tt := range tests {
		if got := CacheBustURL(tt.url, tt.attempt); got != tt.want {
			t.Errorf("CacheBustURL(%q, %d) = %q, want %q", tt.url, tt.attempt, got, tt.want)
		}
	}
}

func TestFetchFunc(t *testing.T) {
	var f Fetcher = FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	})
	data, err := f.Fetch(context.Background(), "mem://x")
	if err != nil || string(data) != "mem://x" {
		t.Fatalf("FetchFunc = %q, %v", data, err)
	}
}
