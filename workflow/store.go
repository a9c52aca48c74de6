package workflow

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when a requested run id or checkpoint
// label does not exist.
var ErrNotFound = errors.New("workflow: not found")

// Store provides optional per-run persistence (§4.12 "observability"),
// installed via WithStore. The driver calls SaveStep after every successful
// node dispatch of the main traversal (nodes run inside a whileLoop body are
// not recorded); hosts may additionally call SaveCheckpoint to label a point
// for later inspection or manual resumption. Unlike the teacher's generic
// Store[S any], this engine's per-run state is always the string Outputs
// map plus node chain, so the interface is not parameterized.
type Store interface {
	// SaveStep persists the outputs snapshot after a node execution step.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, outputs map[string]string) error

	// LoadLatest retrieves the most recently persisted step for runID.
	LoadLatest(ctx context.Context, runID string) (outputs map[string]string, step int, err error)

	// SaveCheckpoint creates a named snapshot, letting a host compare or
	// branch from a labelled point rather than only the latest step.
	SaveCheckpoint(ctx context.Context, label string, outputs map[string]string, step int) error

	// LoadCheckpoint retrieves a previously saved named checkpoint.
	LoadCheckpoint(ctx context.Context, label string) (outputs map[string]string, step int, err error)
}

// StepRecord is a single persisted execution step, returned by Store
// implementations that also expose step history (e.g. for a CLI `history`
// command).
type StepRecord struct {
	Step      int
	NodeID    string
	Outputs   map[string]string
	Timestamp time.Time
}

// recordStep is a no-op-safe helper the driver calls after every successful
// dispatch; it never fails the run — persistence errors are reported via
// callbacks, not propagated as execution errors (§4.12: the store is an
// observability aid, not part of the traversal's correctness contract).
func recordStep(ctx context.Context, ec *ExecContext, step int, nodeID string) {
	s := ec.Options.Store
	if s == nil {
		return
	}
	if err := s.SaveStep(ctx, ec.SessionID, step, nodeID, ec.snapshotOutputs()); err != nil {
		ec.Callbacks.storeError(nodeID, err)
	}
}
