package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-cmp/cmp"

	"github.com/finitefield/quote-configurator/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "105445aa7843bc8bf206b12000100000"})

	rr := httptest.NewRecorder()
	err := NewError("service_not_found", "service not found", http.StatusNotFound).
		WithDetails(map[string]string{"serviceType": "website"})
	WriteError(ctx, rr, err)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var payload struct {
		Error     string            `json:"error"`
		Status    int               `json:"status"`
		RequestID string            `json:"request_id"`
		TraceID   string            `json:"trace_id"`
		Details   map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != "service_not_found" || payload.Status != http.StatusNotFound || payload.RequestID != "req-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("expected trace id, got %q", payload.TraceID)
	}
	if diff := cmp.Diff(map[string]string{"serviceType": "website"}, payload.Details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteErrorOmitsEmptyFields(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, NewError("internal_error", "unexpected error", 0))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"request_id", "trace_id", "details"} {
		if _, ok := payload[key]; ok {
			t.Fatalf("expected %s omitted, got %v", key, payload)
		}
	}
}

func TestWithDetailsMergesAndDropsBlank(t *testing.T) {
	base := NewError("invalid_request", "bad", http.StatusBadRequest).
		WithDetails(map[string]string{"serviceType": "website"})
	err := base.WithDetails(map[string]string{
		"dimension": "cms",
		"optionId":  "  ",
		"":          "orphan",
		"featureId": "line\nbreak",
	})

	want := map[string]string{"serviceType": "website", "dimension": "cms", "featureId": "line break"}
	if diff := cmp.Diff(want, err.Details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
	if len(base.Details) != 1 {
		t.Fatalf("expected receiver details untouched, got %v", base.Details)
	}
	if empty := NewError("x", "y", http.StatusBadRequest).WithDetails(map[string]string{"optionId": ""}); empty.Details != nil {
		t.Fatalf("expected nil details when all values blank, got %v", empty.Details)
	}
}

func TestNewErrorSanitises(t *testing.T) {
	err := NewError("bad\ncode", strings.Repeat("x", 600), 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected default 500, got %d", err.Status)
	}
	if strings.Contains(err.Code, "\n") {
		t.Fatalf("expected newline stripped, got %q", err.Code)
	}
	if len(err.Message) != 512 {
		t.Fatalf("expected message capped at 512, got %d", len(err.Message))
	}
}
