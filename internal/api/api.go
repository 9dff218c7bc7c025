// Package api provides the webhook HTTP server and the response
// normalization boundary for AtendeFlow.
//
// The webhook endpoint is the system's outer surface: it accepts inbound
// WhatsApp message events, hands them to the reception flow, and always
// answers HTTP 200 with a normalized JSON body, even when processing fails
// internally.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Default configuration constants
const (
	// DefaultAddr is the default webhook listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// MaxWebhookBodyBytes bounds inbound payload size.
	MaxWebhookBodyBytes = 64 * 1024
)

// Processor handles one inbound message and returns the raw (pre-
// normalization) response map. Implementations must not panic; the
// normalizer absorbs panics anyway, but the contract is a total function.
type Processor interface {
	ProcessMessage(ctx context.Context, from, body, establishment string) map[string]any
}

// Opts holds configuration options for the Server.
type Opts struct {
	Addr      string
	Processor Processor
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithProcessor sets the message processor behind the webhook.
func WithProcessor(p Processor) Option {
	return func(o *Opts) {
		o.Processor = p
	}
}

// Server is the webhook HTTP server.
type Server struct {
	addr      string
	processor Processor
	httpSrv   *http.Server
}

// NewServer creates a webhook server with the given options. A processor is
// required.
func NewServer(opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Processor == nil {
		return nil, errors.New("api: processor is required")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{addr: addr, processor: cfg.Processor}
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s, nil
}

// Run starts the server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api.Run: webhook server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		slog.Info("api.Run: shutting down webhook server")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// webhookEvent is the inbound webhook payload shape.
type webhookEvent struct {
	From          string `json:"from"`
	Body          string `json:"body"`
	Establishment string `json:"establishment,omitempty"`
}

// webhookHandler processes one inbound message event. The HTTP status is
// always 200 with a normalized body: delivery failures are reported inside
// the payload (sent="false"), never as 5xx, so the upstream webhook caller
// never retries into a storm.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var event webhookEvent
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
	if err := decoder.Decode(&event); err != nil {
		slog.Warn("api.webhookHandler: malformed payload", "error", err)
		writeJSONResponse(w, http.StatusOK, safeErrorResponse())
		return
	}

	raw := s.processor.ProcessMessage(r.Context(), event.From, event.Body, event.Establishment)
	normalized := NormalizeWebhookResponse(raw)
	slog.Debug("api.webhookHandler: responding",
		"from", event.From, "intent", normalized.Intent, "confidence", normalized.Confidence, "sent", normalized.Sent)
	writeJSONResponse(w, http.StatusOK, normalized)
}

// healthHandler is a minimal liveness endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
