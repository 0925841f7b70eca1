package dummy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitetester/internal/config"
	"sitetester/internal/runner"
)

func TestHandlerProfiles(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	cfg := config.Default()
	cfg.Timeout = 5 * time.Second
	client := runner.NewClient(cfg)

	tests := []struct {
		path      string
		status    int
		redirects int
		cached    bool
		size      int64
	}{
		{"/fast", 200, 0, false, int64(len("Fast response"))},
		{"/redirect?n=2", 200, 3, false, int64(len("Fast response"))},
		{"/cached", 200, 0, true, int64(len("Cached response"))},
		{"/large", 200, 0, false, largeBody},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cfg.URL = srv.URL + tt.path
			rec := runner.Execute(context.Background(), client, cfg)
			if !rec.Succeeded() {
				t.Fatalf("request failed: %s (%v)", rec.Err, rec.Failure)
			}
			m := rec.Response
			if m.StatusCode != tt.status || m.Redirects != tt.redirects || m.CacheHit != tt.cached || m.ContentLength != tt.size {
				t.Errorf("got %+v", m)
			}
		})
	}
}

func TestLoopIsRedirectFailure(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	cfg := config.Default()
	cfg.URL = srv.URL + "/loop"
	cfg.Timeout = 5 * time.Second

	rec := runner.Execute(context.Background(), runner.NewClient(cfg), cfg)
	if rec.Failure != runner.FailureRedirect {
		t.Errorf("failure = %v, want redirects", rec.Failure)
	}
}

func TestErrorEndpointStatuses(t *testing.T) {
	h := NewHandler()
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/error", nil))
		seen[rr.Code] = true
	}
	for code := range seen {
		if code != 200 && code != 500 && code != 429 {
			t.Errorf("unexpected status %d", code)
		}
	}
	if !seen[200] {
		t.Error("expected at least one 200")
	}
}
