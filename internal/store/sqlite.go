// Package store provides conversation-state storage backends for
// AtendeFlow.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/EduFluxo/AtendeFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a ConversationStore backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file
// path). The parent directory is created if needed and migrations run on
// open.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("store: sqlite DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("store: failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: sqlite ping failed: %w", err)
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to run sqlite migrations: %w", err)
	}
	slog.Debug("store.NewSQLiteStore: database ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// GetState implements ConversationStore.
func (s *SQLiteStore) GetState(ctx context.Context, participantID string) (models.ConversationStage, models.CollectedData, error) {
	var stage string
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT stage, collected_data FROM conversation_state WHERE participant_id = ?",
		participantID).Scan(&stage, &dataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StageGreeting, models.CollectedData{}, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("store: failed to load state for %s: %w", participantID, err)
	}

	data := models.CollectedData{}
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		// Corrupt collected_data degrades to empty rather than wedging the
		// conversation.
		slog.Warn("store.GetState: corrupt collected_data, resetting", "participant", participantID, "error", err)
		data = models.CollectedData{}
	}
	return models.ParseStage(stage), data, nil
}

// SetStage implements ConversationStore.
func (s *SQLiteStore) SetStage(ctx context.Context, participantID string, stage models.ConversationStage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_state (participant_id, stage, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(participant_id)
		DO UPDATE SET stage = excluded.stage, updated_at = CURRENT_TIMESTAMP`,
		participantID, string(stage))
	if err != nil {
		return fmt.Errorf("store: failed to set stage for %s: %w", participantID, err)
	}
	return nil
}

// SetCollectedField implements ConversationStore. The read-modify-write is
// wrapped in a transaction so concurrent field updates do not clobber each
// other.
func (s *SQLiteStore) SetCollectedField(ctx context.Context, participantID, field, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var dataJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT collected_data FROM conversation_state WHERE participant_id = ?",
		participantID).Scan(&dataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		dataJSON = "{}"
	} else if err != nil {
		return fmt.Errorf("store: failed to load collected data: %w", err)
	}

	data := models.CollectedData{}
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		data = models.CollectedData{}
	}
	data[field] = value
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: failed to encode collected data: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_state (participant_id, collected_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(participant_id)
		DO UPDATE SET collected_data = excluded.collected_data, updated_at = CURRENT_TIMESTAMP`,
		participantID, string(encoded))
	if err != nil {
		return fmt.Errorf("store: failed to save collected data: %w", err)
	}
	return tx.Commit()
}

// AddReceipt implements ConversationStore.
func (s *SQLiteStore) AddReceipt(ctx context.Context, receipt models.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO receipts (to_jid, status, time) VALUES (?, ?, ?)",
		receipt.To, string(receipt.Status), receipt.Time)
	if err != nil {
		return fmt.Errorf("store: failed to insert receipt: %w", err)
	}
	return nil
}

// Close implements ConversationStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
