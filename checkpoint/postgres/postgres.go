// Package postgres stores graph checkpoints in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS agentgraph_checkpoints (
	thread_id  TEXT NOT NULL,
	namespace  TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (thread_id, namespace)
)`

// Store is a graph.Checkpointer backed by PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.Pool.Close()
	return nil
}

// GetState implements graph.Checkpointer.
func (s *Store) GetState(ctx context.Context, cfg graph.CheckpointConfig) (*graph.Checkpoint, error) {
	var data []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT data FROM agentgraph_checkpoints WHERE thread_id = $1 AND namespace = $2`,
		cfg.ThreadID, cfg.Namespace,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

	_, err = s.Pool.Exec(ctx, `
INSERT INTO agentgraph_checkpoints (thread_id, namespace, data, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (thread_id, namespace) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		cfg.ThreadID, cfg.Namespace, data,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

// Delete removes every checkpoint of threadID.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM agentgraph_checkpoints WHERE thread_id = $1`, threadID)
	return err
}
