// Package sqlite stores graph checkpoints in a SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT NOT NULL,
	namespace  TEXT NOT NULL DEFAULT '',
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (thread_id, namespace)
);`

// Store is a graph.Checkpointer backed by SQLite.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// GetState implements graph.Checkpointer.
func (s *Store) GetState(ctx context.Context, cfg graph.CheckpointConfig) (*graph.Checkpoint, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT data FROM checkpoints WHERE thread_id = ? AND namespace = ?`,
		cfg.ThreadID, cfg.Namespace,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, graph.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	return checkpoint.Decode(data)
}

// Put implements graph.Checkpointer.
func (s *Store) Put(ctx context.Context, cfg graph.CheckpointConfig, cp graph.Checkpoint) error {
	data, err := checkpoint.Encode(cp)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `
INSERT INTO checkpoints (thread_id, namespace, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (thread_id, namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		cfg.ThreadID, cfg.Namespace, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

// Delete removes every checkpoint of threadID.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}
