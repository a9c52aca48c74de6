// Package store provides workflow.Store implementations for per-run step
// and checkpoint persistence.
package store

import (
	"context"
	"sync"

	"github.com/graphrun/agentengine/workflow"
)

type stepRecord struct {
	step    int
	nodeID  string
	outputs map[string]string
}

type checkpoint struct {
	outputs map[string]string
	step    int
}

// MemStore is an in-memory workflow.Store, suitable for tests and
// single-process runs. Data is lost when the process exits.
type MemStore struct {
	mu          sync.RWMutex
	steps       map[string][]stepRecord
	checkpoints map[string]checkpoint
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		steps:       make(map[string][]stepRecord),
		checkpoints: make(map[string]checkpoint),
	}
}

func (m *MemStore) SaveStep(_ context.Context, runID string, step int, nodeID string, outputs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[runID] = append(m.steps[runID], stepRecord{step: step, nodeID: nodeID, outputs: copyOutputs(outputs)})
	return nil
}

func (m *MemStore) LoadLatest(_ context.Context, runID string) (map[string]string, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.steps[runID]
	if !ok || len(records) == 0 {
		return nil, 0, workflow.ErrNotFound
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.step > latest.step {
			latest = r
		}
	}
	return copyOutputs(latest.outputs), latest.step, nil
}

func (m *MemStore) SaveCheckpoint(_ context.Context, label string, outputs map[string]string, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[label] = checkpoint{outputs: copyOutputs(outputs), step: step}
	return nil
}

func (m *MemStore) LoadCheckpoint(_ context.Context, label string) (map[string]string, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[label]
	if !ok {
		return nil, 0, workflow.ErrNotFound
	}
	return copyOutputs(cp.outputs), cp.step, nil
}

func copyOutputs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
