package retrieval

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// KeywordStore is a process-local retriever that needs no embedding model.
// Chunks are partitioned by upload id and ranked by the share of query terms
// they contain (case insensitive). Ties keep insertion order.
//
// Concurrency: protected by RWMutex. Retrieval is a linear scan; use Store
// for anything beyond tests, demos and small uploads.
type KeywordStore struct {
	mu      sync.RWMutex
	uploads map[string][]core.Document // uploadID -> chunks in insertion order
}

// NewKeywordStore creates an empty KeywordStore.
func NewKeywordStore() *KeywordStore {
	return &KeywordStore{uploads: make(map[string][]core.Document)}
}

// Add appends chunks to uploadID, generating ids for chunks without one.
func (s *KeywordStore) Add(_ context.Context, uploadID string, docs ...core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("%s-%d", uploadID, len(s.uploads[uploadID]))
		}
		d.Metadata = maps.Clone(d.Metadata)
		s.uploads[uploadID] = append(s.uploads[uploadID], d)
	}
	return nil
}

// Retrieve returns up to k chunks of uploadID containing at least one query
// term. An empty query matches every chunk with score 1.
func (s *KeywordStore) Retrieve(_ context.Context, uploadID, query string, k int) ([]core.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []core.Document
	for _, d := range s.uploads[uploadID] {
		score := termScore(strings.ToLower(d.Content), terms)
		if score == 0 {
			continue
		}
		d.Score = score
		d.Metadata = maps.Clone(d.Metadata)
		hits = append(hits, d)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes every chunk of uploadID.
func (s *KeywordStore) Delete(_ context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[uploadID]; !ok {
		return fmt.Errorf("upload %q not found", uploadID)
	}
	delete(s.uploads, uploadID)
	return nil
}

func termScore(content string, terms []string) float32 {
	if len(terms) == 0 {
		return 1
	}
	var n int
	for _, t := range terms {
		if strings.Contains(content, t) {
			n++
		}
	}
	return float32(n) / float32(len(terms))
}
