package memory

import (
	"context"
	"testing"

	"github.com/graphrun/agentengine/workflow"
)

func TestInMemoryStoreAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	id1, err := m.Store(ctx, workflow.MemoryEntry{Content: "first", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	id2, err := m.Store(ctx, workflow.MemoryEntry{Content: "second", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Errorf("expected distinct non-empty ids, got %q and %q", id1, id2)
	}
}

func TestInMemoryQueryRanksBySubstringCount(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "the cat sat on the mat", SessionID: "s1"})
	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "cat cat cat everywhere", SessionID: "s1"})
	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "no feline mentions here", SessionID: "s1"})

	results, err := m.Query(ctx, workflow.MemoryQuery{Text: "cat", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Content != "cat cat cat everywhere" {
		t.Errorf("expected higher substring-count entry first, got %q", results[0].Content)
	}
}

func TestInMemoryQueryScopedBySessionID(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "session one note", SessionID: "s1"})
	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "session two note", SessionID: "s2"})

	results, err := m.Query(ctx, workflow.MemoryQuery{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].SessionID != "s1" {
		t.Errorf("expected only s1 entries, got %+v", results)
	}
}

func TestInMemoryQueryRespectsLimit(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()
	for i := 0; i < 5; i++ {
		_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "note", SessionID: "s1"})
	}

	results, err := m.Query(ctx, workflow.MemoryQuery{SessionID: "s1", Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2 (limit)", len(results))
	}
}

func TestInMemoryQueryAppliesMetadataFilter(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "billing note", SessionID: "s1", Metadata: map[string]any{"category": "billing"}})
	_, _ = m.Store(ctx, workflow.MemoryEntry{Content: "support note", SessionID: "s1", Metadata: map[string]any{"category": "support"}})

	results, err := m.Query(ctx, workflow.MemoryQuery{SessionID: "s1", Filter: map[string]any{"category": "billing"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Content != "billing note" {
		t.Errorf("expected only the billing entry, got %+v", results)
	}
}
