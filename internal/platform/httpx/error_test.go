package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorKeepsCoreKeys(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()
	err := NewError("catalog_unavailable", "line one\nline two", http.StatusServiceUnavailable).
		WithDetails(map[string]any{"view": "v1"}).
		WithDetails(map[string]any{"status": 200, "field": "email"})

	WriteError(ctx, rec, err)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body map[string]any
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode body: %v", decodeErr)
	}
	if body["error"] != "catalog_unavailable" || body["message"] != "line one line two" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["status"] != float64(http.StatusServiceUnavailable) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
	if body["view"] != "v1" || body["field"] != "email" || body["request_id"] != "req-1" {
		t.Fatalf("expected merged details and request id, got %v", body)
	}
}

func TestNewErrorDefaultsAndClips(t *testing.T) {
	err := NewError(strings.Repeat("x", 100), strings.Repeat("é", 300), 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", err.Status)
	}
	if len(err.Code) != maxCodeLen {
		t.Fatalf("expected code clipped to %d, got %d", maxCodeLen, len(err.Code))
	}
	if len(err.Message) != maxMessageLen || !strings.HasSuffix(err.Message, "é") {
		t.Fatalf("expected message clipped on a rune boundary, got %d bytes", len(err.Message))
	}
}
