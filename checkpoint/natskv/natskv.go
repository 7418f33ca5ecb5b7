// Package natskv stores graph checkpoints in a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/graph"
)

// DefaultBucket is used when no bucket name is given.
const DefaultBucket = "AGENTGRAPH_CHECKPOINTS"

// Store is a graph.Checkpointer backed by a JetStream KV bucket.
type Store struct {
	kv nats.KeyValue
}

// New wraps an existing bucket.
func New(kv nats.KeyValue) *Store {
	return &Store{kv: kv}
}

// Open creates or binds the bucket on js.
func Open(js nats.JetStreamContext, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "agentgraph run checkpoints",
		History:     1,
		Storage:     nats.FileStorage,
	})
	if err != nil {
		kv, err = js.KeyValue(bucket)
		if err != nil {
			return nil, fmt.Errorf("create/get checkpoint bucket %q: %w", bucket, err)
		}
	}

	return New(kv), nil
}

// Key maps a checkpoint address onto the KV key alphabet.
func Key(cfg graph.CheckpointConfig) string {
	enc := base64.RawURLEncoding
	ns := "_"
	if cfg.Namespace != "" {
		ns = enc.EncodeToString([]byte(cfg.Namespace))
	}
	return "cp." + enc.EncodeToString([]byte(cfg.ThreadID)) + "." + ns
}

// GetState implements graph.Checkpointer.
func (s *Store) GetState(_ context.Context, cfg graph.CheckpointConfig) (*graph.Checkpoint, error) {
	entry, err := s.kv.Get(Key(cfg))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, graph.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	return checkpoint.Decode(entry.Value())
}

// Put implements graph.Checkpointer.
func (s *Store) Put(_ context.Context, cfg graph.CheckpointConfig, cp graph.Checkpoint) error {
	data, err := checkpoint.Encode(cp)
	if err != nil {
		return err
	}

	if _, err := s.kv.Put(Key(cfg), data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}
