// Package memory provides workflow.MemoryAdapter implementations backing
// memory nodes (§4.10).
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/graphrun/agentengine/workflow"
)

// InMemory is a process-local workflow.MemoryAdapter, scoped per session id
// and ranked by a simple substring relevance score. Suitable for tests and
// single-process deployments; data does not survive a restart.
type InMemory struct {
	mu      sync.RWMutex
	entries []workflow.MemoryEntry
	nextID  int
}

// NewInMemory creates an empty in-memory adapter.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) Store(_ context.Context, entry workflow.MemoryEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = strconv.Itoa(m.nextID)
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *InMemory) Query(_ context.Context, q workflow.MemoryQuery) ([]workflow.MemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry workflow.MemoryEntry
		score int
	}
	needle := strings.ToLower(q.Text)

	var matches []scored
	for _, e := range m.entries {
		if q.SessionID != "" && e.SessionID != q.SessionID {
			continue
		}
		if !matchesFilter(e, q.Filter) {
			continue
		}
		score := 0
		if needle != "" {
			score = strings.Count(strings.ToLower(e.Content), needle)
			if score == 0 {
				continue
			}
		}
		matches = append(matches, scored{entry: e, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	limit := q.Limit
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	out := make([]workflow.MemoryEntry, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, matches[i].entry)
	}
	return out, nil
}

func matchesFilter(e workflow.MemoryEntry, filter map[string]any) bool {
	for k, v := range filter {
		if e.Metadata == nil {
			return false
		}
		if e.Metadata[k] != v {
			return false
		}
	}
	return true
}
