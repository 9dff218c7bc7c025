package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp *openai.ChatCompletion
	err  error
}

func (m *mockChatService) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return m.resp, m.err
}

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClassifyIntentSuccess(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith(`{"intent": "scheduling", "confidence": 0.87}`),
	}}
	got, err := client.ClassifyIntent(context.Background(), "quero agendar uma avaliação")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Intent != "scheduling" || got.Confidence != 0.87 {
		t.Errorf("unexpected classification: %+v", got)
	}
}

func TestClassifyIntentStripsCodeFence(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith("```json\n{\"intent\": \"greeting\", \"confidence\": 0.6}\n```"),
	}}
	got, err := client.ClassifyIntent(context.Background(), "oi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Intent != "greeting" {
		t.Errorf("unexpected intent: %+v", got)
	}
}

func TestClassifyIntentClampsConfidence(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith(`{"intent": "scheduling", "confidence": 1.8}`),
	}}
	got, err := client.ClassifyIntent(context.Background(), "agendar")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Confidence != 1.0 {
		t.Errorf("expected clamped confidence, got %f", got.Confidence)
	}
}

func TestClassifyIntentUnparseable(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("not json at all")}}
	if _, err := client.ClassifyIntent(context.Background(), "oi"); err == nil {
		t.Error("expected error for unparseable output")
	}
}

func TestClassifyIntentServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.ClassifyIntent(context.Background(), "oi")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected wrapped service failure, got %v", err)
	}
}

func TestGenerateReplyNoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	if _, err := client.GenerateReply(context.Background(), "sys", "usr"); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewClientNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClientWithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance")
	}
}
