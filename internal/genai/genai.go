// Package genai provides the OpenAI-backed collaborators of the
// classification core: the external intent classifier whose confidence feeds
// the threshold engine, and reply generation for the enhance_with_llm
// routing action.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Error variables for better error handling and testability
var (
	ErrNoAPIKey          = errors.New("genai: OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("genai: no choices returned")
)

// classifySystemPrompt constrains the model to the closed label set and a
// strict JSON shape so the confidence can be parsed reliably.
const classifySystemPrompt = `Você é um classificador de intenções para a recepção de uma unidade de ensino.
Responda SOMENTE com JSON no formato {"intent": "<rótulo>", "confidence": <0.0-1.0>}.
Rótulos permitidos: greeting, information_request, qualification, scheduling, fallback, objection.`

// chatService is the minimal seam over the OpenAI chat completion API,
// allowing tests to substitute a mock.
type chatService interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openaiChat adapts the real client to chatService.
type openaiChat struct {
	client openai.Client
}

func (c openaiChat) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// Classification is the external classifier's verdict for one message.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly (otherwise the
// OPENAI_API_KEY environment variable is used).
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client from options and environment.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{chat: openaiChat{client: cli}, model: model}, nil
}

// ClassifyIntent asks the model for an intent label and confidence for one
// message. Callers treat any error as zero-confidence: classification
// failures must degrade routing, never break it.
func (c *Client) ClassifyIntent(ctx context.Context, message string) (Classification, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(message),
		},
		Temperature: openai.Float(0),
	}
	resp, err := c.chat.Complete(ctx, params)
	if err != nil {
		return Classification{}, fmt.Errorf("genai: classify completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Classification{}, ErrNoChoicesReturned
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return Classification{}, fmt.Errorf("genai: unparseable classifier output %q: %w", content, err)
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	slog.Debug("genai.ClassifyIntent: classified",
		"intent", result.Intent, "confidence", result.Confidence)
	return result, nil
}

// GenerateReply produces a conversational PT-BR reply for the
// enhance_with_llm action.
func (c *Client) GenerateReply(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
	}
	resp, err := c.chat.Complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("genai: reply completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models add despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
