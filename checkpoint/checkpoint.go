// Package checkpoint provides graph.Checkpointer implementations.
//
// All backends store checkpoints as JSON produced by Encode, so a run
// suspended under one backend process can be resumed by another process
// reading the same store.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgraph/graph"
)

// Encode serializes cp.
func Encode(cp graph.Checkpoint) ([]byte, error) {
	if cp.Next == nil {
		cp.Next = []string{}
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// Decode deserializes data written by Encode.
func Decode(data []byte) (*graph.Checkpoint, error) {
	var cp graph.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Memory keeps checkpoints in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[graph.CheckpointConfig][]byte
}

// NewMemory creates an empty in-memory checkpointer.
func NewMemory() *Memory {
	return &Memory{data: make(map[graph.CheckpointConfig][]byte)}
}

// GetState implements graph.Checkpointer.
func (m *Memory) GetState(_ context.Context, cfg graph.CheckpointConfig) (*graph.Checkpoint, error) {
	m.mu.RLock()
	data, ok := m.data[cfg]
	m.mu.RUnlock()

	if !ok {
		return nil, graph.ErrCheckpointNotFound
	}
	return Decode(data)
}

// Put implements graph.Checkpointer.
func (m *Memory) Put(_ context.Context, cfg graph.CheckpointConfig, cp graph.Checkpoint) error {
	data, err := Encode(cp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[cfg] = data
	m.mu.Unlock()

	return nil
}

// Delete removes every checkpoint of threadID.
func (m *Memory) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.data {
		if k.ThreadID == threadID {
			delete(m.data, k)
		}
	}
	return nil
}
