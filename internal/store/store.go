// Package store provides conversation-state storage backends for
// AtendeFlow.
//
// The classification core is stateless per call; what persists between
// turns is only the participant's current stage and the qualification
// fields collected so far. SQLite and PostgreSQL backends share one
// interface, plus an in-memory implementation for tests.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

// ConversationStore persists per-participant conversation state.
type ConversationStore interface {
	// GetState returns the participant's current stage and collected data.
	// Unknown participants start at the greeting stage with no data.
	GetState(ctx context.Context, participantID string) (models.ConversationStage, models.CollectedData, error)

	// SetStage updates the participant's current stage.
	SetStage(ctx context.Context, participantID string, stage models.ConversationStage) error

	// SetCollectedField stores one gathered qualification field.
	SetCollectedField(ctx context.Context, participantID, field, value string) error

	// AddReceipt records a delivery event for an outbound message.
	AddReceipt(ctx context.Context, receipt models.Receipt) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" by shape.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a non-persistent ConversationStore for tests and local
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	stages   map[string]models.ConversationStage
	data     map[string]models.CollectedData
	receipts []models.Receipt
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stages: make(map[string]models.ConversationStage),
		data:   make(map[string]models.CollectedData),
	}
}

// GetState implements ConversationStore.
func (s *InMemoryStore) GetState(ctx context.Context, participantID string) (models.ConversationStage, models.CollectedData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stage, ok := s.stages[participantID]
	if !ok {
		return models.StageGreeting, models.CollectedData{}, nil
	}
	// Copy so callers cannot mutate shared state.
	data := models.CollectedData{}
	for k, v := range s.data[participantID] {
		data[k] = v
	}
	return stage, data, nil
}

// SetStage implements ConversationStore.
func (s *InMemoryStore) SetStage(ctx context.Context, participantID string, stage models.ConversationStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[participantID] = stage
	if _, ok := s.data[participantID]; !ok {
		s.data[participantID] = models.CollectedData{}
	}
	return nil
}

// SetCollectedField implements ConversationStore.
func (s *InMemoryStore) SetCollectedField(ctx context.Context, participantID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[participantID]; !ok {
		s.data[participantID] = models.CollectedData{}
		s.stages[participantID] = models.StageGreeting
	}
	s.data[participantID][field] = value
	return nil
}

// AddReceipt implements ConversationStore.
func (s *InMemoryStore) AddReceipt(ctx context.Context, receipt models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, receipt)
	return nil
}

// Receipts returns a copy of the recorded receipts.
func (s *InMemoryStore) Receipts() []models.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out
}

// Close implements ConversationStore.
func (s *InMemoryStore) Close() error {
	return nil
}
