package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/EduFluxo/AtendeFlow/internal/models"
	"github.com/EduFluxo/AtendeFlow/internal/whatsapp"
)

func TestCanonicalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		want      string
		wantErr   bool
	}{
		{name: "already canonical", recipient: "5511999990000", want: "5511999990000"},
		{name: "with plus and dashes", recipient: "+55 (11) 99999-0000", want: "5511999990000"},
		{name: "whatsapp prefix", recipient: "whatsapp:+5511999990000", want: "5511999990000"},
		{name: "empty", recipient: "", wantErr: true},
		{name: "no digits", recipient: "abc-def", wantErr: true},
		{name: "too short", recipient: "12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalizePhoneNumber(tt.recipient)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.recipient, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("canonicalizePhoneNumber(%q) = %q, want %q", tt.recipient, got, tt.want)
			}
		})
	}
}

func TestWhatsAppServiceSendEmitsReceipt(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendMessage(context.Background(), "+55 11 99999-0000", "Olá!"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	if len(mock.Sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.Sent))
	}
	if mock.Sent[0].To != "5511999990000" {
		t.Errorf("sent to %q, want canonical form", mock.Sent[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt status = %q, want %q", receipt.Status, models.MessageStatusSent)
		}
		if receipt.To != "5511999990000" {
			t.Errorf("receipt to = %q", receipt.To)
		}
	case <-time.After(time.Second):
		t.Fatal("no receipt emitted within 1s")
	}
}

func TestWhatsAppServiceRejectsBadRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.SendMessage(context.Background(), "", "Olá!"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestWhatsAppServiceSendNeverBlocksOnFullReceiptBuffer(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	// Fill the receipts buffer without anything draining it.
	for i := 0; i < DefaultChannelBufferSize; i++ {
		if err := svc.SendMessage(context.Background(), "5511999990000", "Oi"); err != nil {
			t.Fatalf("send %d returned error: %v", i, err)
		}
	}

	// The next send drops its receipt after the channel timeout instead of
	// wedging the send path.
	done := make(chan error, 1)
	go func() {
		done <- svc.SendMessage(context.Background(), "5511999990000", "Oi")
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send over full buffer returned error: %v", err)
		}
	case <-time.After(DefaultChannelTimeout + 2*time.Second):
		t.Fatal("SendMessage blocked on full receipts buffer")
	}

	if len(mock.Sent) != DefaultChannelBufferSize+1 {
		t.Errorf("expected %d sent messages, got %d", DefaultChannelBufferSize+1, len(mock.Sent))
	}
}

func TestWhatsAppServiceStartWithMockIsNoop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}

type mockTwilioSender struct {
	sent []struct{ To, Body string }
	err  error
}

func (m *mockTwilioSender) SendMessage(ctx context.Context, to string, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, struct{ To, Body string }{to, body})
	return nil
}

func TestTwilioServiceSendMessage(t *testing.T) {
	sender := &mockTwilioSender{}
	svc := NewTwilioService(sender)

	if err := svc.SendMessage(context.Background(), "whatsapp:+5511988880000", "Bom dia!"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "5511988880000" {
		t.Fatalf("unexpected sent messages: %+v", sender.sent)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt status = %q", receipt.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no receipt emitted within 1s")
	}
}

func TestTwilioServiceSendAfterStop(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	err := svc.SendMessage(context.Background(), "5511988880000", "Oi")
	if !errors.Is(err, ErrServiceStopped) {
		t.Fatalf("expected ErrServiceStopped, got %v", err)
	}
	// Second Stop must be a no-op.
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}

func TestTwilioServiceSenderError(t *testing.T) {
	wantErr := errors.New("twilio unavailable")
	svc := NewTwilioService(&mockTwilioSender{err: wantErr})
	if err := svc.SendMessage(context.Background(), "5511988880000", "Oi"); !errors.Is(err, wantErr) {
		t.Fatalf("expected sender error to propagate, got %v", err)
	}
	// No receipt should be emitted on failure.
	select {
	case receipt := <-svc.Receipts():
		t.Fatalf("unexpected receipt on failed send: %+v", receipt)
	default:
	}
}

func TestTwilioWebhookHandler(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})

	form := url.Values{}
	form.Set("From", "whatsapp:+5511977770000")
	form.Set("Body", "Quero agendar uma avaliação")

	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.TwilioWebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "whatsapp:+5511977770000" {
			t.Errorf("response from = %q", resp.From)
		}
		if resp.Body != "Quero agendar uma avaliação" {
			t.Errorf("response body = %q", resp.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("no response emitted within 1s")
	}
}

func TestTwilioWebhookHandlerMissingFields(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})

	form := url.Values{}
	form.Set("From", "whatsapp:+5511977770000")

	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.TwilioWebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("webhook status = %d, want 400", rec.Code)
	}
}

func TestServicesImplementInterface(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
}
