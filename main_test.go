package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNotFoundHandler(t *testing.T) {
	t.Run("unknown api route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		notFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if !strings.Contains(rec.Body.String(), "Not found") {
			t.Errorf("body = %q, want a JSON error", rec.Body.String())
		}
	})

	t.Run("unknown plain route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		notFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
