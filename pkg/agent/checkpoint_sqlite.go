// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const checkpointTable = "agent_checkpoints"

// SQLiteCheckpointStore persists thread state in a SQLite database, one row
// per thread, replaced on every write.
type SQLiteCheckpointStore struct {
	db *sql.DB
}

// NewSQLiteCheckpointStore creates a SQLite-backed store and ensures schema.
func NewSQLiteCheckpointStore(db *sql.DB) (*SQLiteCheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		thread_id TEXT PRIMARY KEY,
		state_json BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`, checkpointTable))
	if err != nil {
		return nil, fmt.Errorf("ensure checkpoint schema: %w", err)
	}
	return &SQLiteCheckpointStore{db: db}, nil
}

// Get implements CheckpointStore.
func (s *SQLiteCheckpointStore) Get(ctx context.Context, threadID string) (*State, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT state_json FROM %s WHERE thread_id = ?", checkpointTable),
		threadID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	return &state, nil
}

// Put implements CheckpointStore. Last write wins.
func (s *SQLiteCheckpointStore) Put(ctx context.Context, threadID string, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (thread_id, state_json, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
			checkpointTable),
		threadID, payload, time.Now().UnixMilli())
	return err
}

var _ CheckpointStore = (*SQLiteCheckpointStore)(nil)
