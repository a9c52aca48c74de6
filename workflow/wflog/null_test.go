package wflog

import (
	"context"
	"testing"
)

func TestNullEmitterDiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{RunID: "r1", Msg: "node_start"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "a"}, {Msg: "b"}}); err != nil {
		t.Errorf("EmitBatch returned %v, want nil", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Errorf("Flush returned %v, want nil", err)
	}
}
