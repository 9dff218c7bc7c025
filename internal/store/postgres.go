// Package store provides conversation-state storage backends for
// AtendeFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/EduFluxo/AtendeFlow/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a ConversationStore backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// runs migrations on open.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("store: postgres DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: postgres ping failed: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to run postgres migrations: %w", err)
	}
	slog.Debug("store.NewPostgresStore: database ready")
	return &PostgresStore{db: db}, nil
}

// GetState implements ConversationStore.
func (s *PostgresStore) GetState(ctx context.Context, participantID string) (models.ConversationStage, models.CollectedData, error) {
	var stage string
	var dataJSON []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT stage, collected_data FROM conversation_state WHERE participant_id = $1",
		participantID).Scan(&stage, &dataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StageGreeting, models.CollectedData{}, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("store: failed to load state for %s: %w", participantID, err)
	}

	data := models.CollectedData{}
	if err := json.Unmarshal(dataJSON, &data); err != nil {
		slog.Warn("store.GetState: corrupt collected_data, resetting", "participant", participantID, "error", err)
		data = models.CollectedData{}
	}
	return models.ParseStage(stage), data, nil
}

// SetStage implements ConversationStore.
func (s *PostgresStore) SetStage(ctx context.Context, participantID string, stage models.ConversationStage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_state (participant_id, stage, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (participant_id)
		DO UPDATE SET stage = EXCLUDED.stage, updated_at = now()`,
		participantID, string(stage))
	if err != nil {
		return fmt.Errorf("store: failed to set stage for %s: %w", participantID, err)
	}
	return nil
}

// SetCollectedField implements ConversationStore. The JSONB concatenation
// happens server-side, so no read-modify-write race.
func (s *PostgresStore) SetCollectedField(ctx context.Context, participantID, field, value string) error {
	patch, err := json.Marshal(models.CollectedData{field: value})
	if err != nil {
		return fmt.Errorf("store: failed to encode field patch: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_state (participant_id, collected_data, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (participant_id)
		DO UPDATE SET collected_data = conversation_state.collected_data || EXCLUDED.collected_data, updated_at = now()`,
		participantID, string(patch))
	if err != nil {
		return fmt.Errorf("store: failed to save collected data: %w", err)
	}
	return nil
}

// AddReceipt implements ConversationStore.
func (s *PostgresStore) AddReceipt(ctx context.Context, receipt models.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO receipts (to_jid, status, time) VALUES ($1, $2, $3)",
		receipt.To, string(receipt.Status), receipt.Time)
	if err != nil {
		return fmt.Errorf("store: failed to insert receipt: %w", err)
	}
	return nil
}

// Close implements ConversationStore.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
