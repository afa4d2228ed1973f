package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelworks/newsreel/internal/models"
)

func authStatus(apiKey string, setup func(*http.Request)) int {
	handler := APIKeyAuth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKeyAuth(t *testing.T) {
	if code := authStatus("secret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "secret")
	}); code != http.StatusNoContent {
		t.Errorf("X-API-Key auth should pass, got %d", code)
	}

	if code := authStatus("secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret")
	}); code != http.StatusNoContent {
		t.Errorf("bearer auth should pass, got %d", code)
	}

	if code := authStatus("secret", nil); code != http.StatusUnauthorized {
		t.Errorf("missing key should be rejected, got %d", code)
	}

	if code := authStatus("secret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "wrong")
	}); code != http.StatusUnauthorized {
		t.Errorf("wrong key should be rejected, got %d", code)
	}

	// Empty configured key = dev mode, everything passes.
	if code := authStatus("", nil); code != http.StatusNoContent {
		t.Errorf("empty configured key should disable auth, got %d", code)
	}
}

func TestJobFromRequestSourceURL(t *testing.T) {
	declared := "https://example.com/story/42"
	job := jobFromRequest(&models.CreateJobRequest{
		Title:     "Example story",
		SourceURL: &declared,
	})
	if job.SourceURL != declared {
		t.Errorf("declared source_url should be preserved, got %q", job.SourceURL)
	}

	// Without a declared URL each job gets its own synthetic key.
	a := jobFromRequest(&models.CreateJobRequest{Title: "one"})
	b := jobFromRequest(&models.CreateJobRequest{Title: "two"})
	if a.SourceURL == "" || a.SourceURL == b.SourceURL {
		t.Errorf("synthetic source urls must be unique, got %q and %q", a.SourceURL, b.SourceURL)
	}
	if a.Status != models.JobStatusProcessing {
		t.Errorf("new jobs start processing, got %s", a.Status)
	}
}
