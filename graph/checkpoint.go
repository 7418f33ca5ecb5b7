package graph

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a thread and namespace.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointConfig addresses a checkpoint.
type CheckpointConfig struct {
	ThreadID  string
	Namespace string
}

// Checkpoint is a saved run position.
type Checkpoint struct {
	Values State    `json:"values"`
	Next   []string `json:"next"`
}

// Checkpointer persists checkpoints. Implementations may assume a single
// writer per (thread, namespace).
type Checkpointer interface {
	GetState(ctx context.Context, cfg CheckpointConfig) (*Checkpoint, error)
	Put(ctx context.Context, cfg CheckpointConfig, cp Checkpoint) error
}

type nopCheckpointer struct{}

func (nopCheckpointer) GetState(context.Context, CheckpointConfig) (*Checkpoint, error) {
	return nil, ErrCheckpointNotFound
}

func (nopCheckpointer) Put(context.Context, CheckpointConfig, Checkpoint) error { return nil }
