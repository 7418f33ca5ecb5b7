// Package retrieval searches upload partitions stored in a chromem-go database.
package retrieval

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/agentgraph/core"
)

const (
	defaultCollection = "uploads"
	uploadKey         = "upload_id"
)

// Options configure a Store.
type Options struct {
	// Path enables on-disk persistence. Empty keeps everything in memory.
	Path       string
	Compress   bool
	Collection string
	// Embed computes embeddings. Nil uses chromem's default OpenAI embedder,
	// which reads OPENAI_API_KEY.
	Embed chromem.EmbeddingFunc
}

// Store keeps all upload chunks in one collection, partitioned by upload id
// metadata. It implements tool.Retriever.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens or creates the store.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Collection: defaultCollection}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		db  *chromem.DB
		err error
	)
	if opts.Path != "" {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open retrieval db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	c, err := db.GetOrCreateCollection(opts.Collection, nil, opts.Embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", opts.Collection, err)
	}

	return &Store{db: db, collection: c}, nil
}

// Add indexes chunks under uploadID. Chunking happens upstream.
func (s *Store) Add(ctx context.Context, uploadID string, docs ...core.Document) error {
	chunks := make([]chromem.Document, 0, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta[uploadKey] = uploadID

		id := d.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d-%s", uploadID, i, core.NewID())
		}

		chunks = append(chunks, chromem.Document{ID: id, Content: d.Content, Metadata: meta})
	}

	return s.collection.AddDocuments(ctx, chunks, runtime.NumCPU())
}

// Retrieve returns up to k chunks of uploadID ranked by similarity to query.
func (s *Store) Retrieve(ctx context.Context, uploadID, query string, k int) ([]core.Document, error) {
	if n := s.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, k, map[string]string{uploadKey: uploadID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query upload %q: %w", uploadID, err)
	}

	docs := make([]core.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, core.Document{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}

	return docs, nil
}

// Delete removes every chunk of uploadID.
func (s *Store) Delete(ctx context.Context, uploadID string) error {
	return s.collection.Delete(ctx, map[string]string{uploadKey: uploadID}, nil)
}
