package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

type recordingProcessor struct {
	mu       sync.Mutex
	messages []struct{ From, Body, Establishment string }
}

func (p *recordingProcessor) ProcessMessage(ctx context.Context, from, body, establishment string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, struct{ From, Body, Establishment string }{from, body, establishment})
	return map[string]any{"sent": false, "intent": "greeting"}
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type recordingReceiptStore struct {
	mu       sync.Mutex
	receipts []models.Receipt
}

func (s *recordingReceiptStore) AddReceipt(ctx context.Context, receipt models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *recordingReceiptStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

func postWebhook(t *testing.T, svc *TwilioService, from, body string) {
	t.Helper()
	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestResponseHandlerFeedsProcessor(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	processor := &recordingProcessor{}
	handler := NewResponseHandler(svc, processor, nil, "unidade-centro")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)

	postWebhook(t, svc, "whatsapp:+5511977770000", "Quero agendar uma avaliação")

	waitFor(t, "processor to receive message", func() bool { return processor.count() == 1 })

	processor.mu.Lock()
	got := processor.messages[0]
	processor.mu.Unlock()
	if got.From != "whatsapp:+5511977770000" {
		t.Errorf("processed from = %q", got.From)
	}
	if got.Body != "Quero agendar uma avaliação" {
		t.Errorf("processed body = %q", got.Body)
	}
	if got.Establishment != "unidade-centro" {
		t.Errorf("processed establishment = %q", got.Establishment)
	}
}

func TestResponseHandlerPersistsReceipts(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	processor := &recordingProcessor{}
	store := &recordingReceiptStore{}
	handler := NewResponseHandler(svc, processor, store, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)

	if err := svc.SendMessage(context.Background(), "5511988880000", "Bom dia!"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	waitFor(t, "receipt to be persisted", func() bool { return store.count() == 1 })

	store.mu.Lock()
	receipt := store.receipts[0]
	store.mu.Unlock()
	if receipt.To != "5511988880000" {
		t.Errorf("receipt to = %q", receipt.To)
	}
	if receipt.Status != models.MessageStatusSent {
		t.Errorf("receipt status = %q", receipt.Status)
	}
}

func TestResponseHandlerStopsOnContextCancel(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	processor := &recordingProcessor{}
	handler := NewResponseHandler(svc, processor, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	handler.Start(ctx)
	cancel()

	// Give the loops a moment to observe cancellation, then verify a new
	// webhook message is no longer processed.
	time.Sleep(50 * time.Millisecond)
	postWebhook(t, svc, "whatsapp:+5511966660000", "Olá")
	time.Sleep(100 * time.Millisecond)

	if processor.count() != 0 {
		t.Errorf("expected no processed messages after cancel, got %d", processor.count())
	}
}
