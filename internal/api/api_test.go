package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

// mockProcessor returns a canned raw response map.
type mockProcessor struct {
	raw map[string]any
}

func (m *mockProcessor) ProcessMessage(ctx context.Context, from, body, establishment string) map[string]any {
	return m.raw
}

func newTestServer(t *testing.T, p Processor) *Server {
	t.Helper()
	s, err := NewServer(WithProcessor(p))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return s
}

func TestNewServerRequiresProcessor(t *testing.T) {
	if _, err := NewServer(); err == nil {
		t.Error("expected error without processor")
	}
}

func TestWebhookHandlerSuccess(t *testing.T) {
	s := newTestServer(t, &mockProcessor{raw: map[string]any{
		"sent":          true,
		"confidence":    0.9,
		"intent":        "scheduling",
		"response_text": "Podemos agendar sua avaliação amanhã.",
	}})

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"from":"5511999990000","body":"quero agendar"}`))
	rec := httptest.NewRecorder()
	s.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Sent != "true" {
		t.Errorf("expected sent=true string, got %q", resp.Sent)
	}
	if resp.Intent != models.WebhookIntentScheduling {
		t.Errorf("expected scheduling, got %s", resp.Intent)
	}
}

func TestWebhookHandlerMalformedBodyStill200(t *testing.T) {
	s := newTestServer(t, &mockProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("malformed input must still answer 200, got %d", rec.Code)
	}
	var resp models.WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Status != "error" || resp.Intent != models.WebhookIntentFallback {
		t.Errorf("expected safe-error payload, got %+v", resp)
	}
}

func TestWebhookHandlerEncodingFailureFallsBack(t *testing.T) {
	// A channel in the entities map survives normalization (it is a map) but
	// cannot be marshaled; the pre-marshaled fallback body must be served.
	s := newTestServer(t, &mockProcessor{raw: map[string]any{
		"entities": map[string]any{"bad": make(chan int)},
	}})

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"from":"5511999990000","body":"oi"}`))
	rec := httptest.NewRecorder()
	s.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("fallback body must be valid JSON: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("expected fallback error payload, got %+v", resp)
	}
}

func TestWebhookHandlerMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &mockProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	s.webhookHandler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, &mockProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
