package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func (s *testServer) do(method, path, user string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestNewRouter_Health(t *testing.T) {
	srv := newTestServer(t, NewMockBookService(), nil)

	rr := srv.do(http.MethodGet, "/health", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestNewRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t, NewMockBookService(), nil)

	for _, path := range []string{"/api/v1/books", "/api/v1/history", "/api/v1/stats", "/api/v1/auth/profile"} {
		if rr := srv.do(http.MethodGet, path, "", nil); rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected status %d, got %d", path, http.StatusUnauthorized, rr.Code)
		}
	}
}

func TestNewRouter_Profile(t *testing.T) {
	srv := newTestServer(t, NewMockBookService(), nil)

	rr := srv.do(http.MethodGet, "/api/v1/auth/profile", "user-1", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"id":"user-1"`) {
		t.Fatalf("unexpected profile response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, NewMockBookService(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
