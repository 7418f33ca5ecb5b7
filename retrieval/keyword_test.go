package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// Interface compliance (compile-time assertions)
var _ tool.Retriever = (*KeywordStore)(nil)

func TestKeywordStore_AddRetrieveDelete(t *testing.T) {
	ctx := context.Background()
	s := NewKeywordStore()

	err := s.Add(ctx, "u1",
		core.Document{Content: "Holiday policy: 30 days per year"},
		core.Document{Content: "Invoice approval needs two signatures", Metadata: map[string]string{"page": "2"}},
		core.Document{Content: "Holiday requests go through the invoice portal"},
	)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.Add(ctx, "u2", core.Document{Content: "holiday calendar for another user"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	docs, err := s.Retrieve(ctx, "u1", "holiday invoice", 10)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(docs))
	}
	if docs[0].ID != "u1-2" || docs[0].Score != 1 {
		t.Fatalf("expected the chunk matching both terms first, got %#v", docs[0])
	}
	if docs[1].ID != "u1-0" || docs[1].Score != 0.5 {
		t.Fatalf("expected ties in insertion order, got %#v", docs[1])
	}

	// partition isolation
	other, _ := s.Retrieve(ctx, "u2", "invoice", 10)
	if len(other) != 0 {
		t.Fatalf("expected no invoice chunk in u2, got %#v", other)
	}

	// limit
	limited, _ := s.Retrieve(ctx, "u1", "", 2)
	if len(limited) != 2 {
		t.Fatalf("expected 2 limited results, got %d", len(limited))
	}

	// returned metadata is a copy
	docs[2].Metadata["page"] = "changed"
	again, _ := s.Retrieve(ctx, "u1", "signatures", 1)
	if again[0].Metadata["page"] != "2" {
		t.Fatalf("expected copy isolation, got %q", again[0].Metadata["page"])
	}

	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if docs, _ := s.Retrieve(ctx, "u1", "", 10); len(docs) != 0 {
		t.Fatalf("expected empty upload after delete, got %d", len(docs))
	}
	if err := s.Delete(ctx, "u1"); err == nil {
		t.Fatalf("expected error deleting unknown upload")
	}
}

func TestKeywordStore_RetrievalTool(t *testing.T) {
	ctx := context.Background()
	s := NewKeywordStore()
	_ = s.Add(ctx, "u1", core.Document{Content: "The office closes at 6pm"})

	rt := tool.NewRetrievalTool("handbook", "", "u1", 2, s)
	out, err := rt.Call(ctx, map[string]any{"query": "office"})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	res, ok := out.(tool.Result)
	if !ok {
		t.Fatalf("expected tool.Result, got %T", out)
	}
	if len(res.Documents) != 1 {
		t.Fatalf("expected one document, got %#v", res.Documents)
	}
}

func TestKeywordStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewKeywordStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Add(ctx, "u1", core.Document{ID: fmt.Sprintf("d%d", i), Content: "chunk"})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Retrieve(ctx, "u1", "chunk", 5)
		}()
	}
	wg.Wait()

	docs, _ := s.Retrieve(ctx, "u1", "chunk", 100)
	if len(docs) != 50 {
		t.Fatalf("expected 50 chunks, got %d", len(docs))
	}
}
