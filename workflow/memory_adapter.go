package workflow

import "context"

// MemoryAdapter is the external collaborator consumed by the memory
// executor (C10, §4.10). Implementations live in the sibling memory/
// package; the engine only depends on this interface (§1 "out of scope").
type MemoryAdapter interface {
	// Query retrieves entries relevant to q, returning their contents.
	Query(ctx context.Context, q MemoryQuery) ([]MemoryEntry, error)

	// Store persists an entry and returns its assigned id.
	Store(ctx context.Context, entry MemoryEntry) (string, error)
}

// MemoryQuery describes a memory lookup for the "query" operation.
type MemoryQuery struct {
	Text      string
	SessionID string
	Limit     int
	Filter    map[string]any
}

// MemoryEntry is a single stored (or retrieved) memory record.
type MemoryEntry struct {
	ID        string
	Content   string
	Metadata  map[string]any
	SessionID string
	NodeID    string
	Timestamp int64 // unix nanos
}
