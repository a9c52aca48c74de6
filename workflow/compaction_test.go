package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/model/mock"
)

func makeHistory(n int, content string) []model.Message {
	history := make([]model.Message, n)
	for i := range history {
		history[i] = model.Message{Role: model.RoleUser, Content: content}
	}
	return history
}

func TestCompactReturnsHistoryUnchangedUnderThreshold(t *testing.T) {
	history := makeHistory(3, "short")
	cfg := CompactionConfig{ModelLimit: 100000}
	out, err := compact(context.Background(), cfg, history, nil)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(out) != len(history) {
		t.Errorf("len(out) = %d, want %d (no compaction needed)", len(out), len(history))
	}
}

func TestCompactTruncateDropsOlderHalfPreservingRecent(t *testing.T) {
	// Each message is ~2500 approx tokens (10000 chars / 4); 10 messages
	// well exceeds a small modelLimit, forcing compaction.
	history := makeHistory(10, strings.Repeat("x", 10000))
	cfg := CompactionConfig{ModelLimit: 5000, Margin: 100, PreservedRecent: 2}

	out, err := compact(context.Background(), cfg, history, nil)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	// 8 compactable messages, old half (4) dropped, 4 remain + 2 preserved = 6.
	if len(out) != 6 {
		t.Errorf("len(out) = %d, want 6", len(out))
	}
}

func TestCompactSummarizeReplacesOlderMessagesWithSummary(t *testing.T) {
	history := makeHistory(10, strings.Repeat("x", 10000))
	cfg := CompactionConfig{ModelLimit: 5000, Margin: 100, PreservedRecent: 2, Strategy: CompactSummarize}
	m := &mock.ChatModel{Responses: []model.ChatOut{{Text: "summary of the conversation"}}}

	out, err := compact(context.Background(), cfg, history, m)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(out) != 3 { // 1 summary message + 2 preserved
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if !strings.Contains(out[0].Content, "summary of the conversation") {
		t.Errorf("out[0].Content = %q, want it to embed the summarizer's reply", out[0].Content)
	}
	if out[0].Role != model.RoleSystem {
		t.Errorf("out[0].Role = %q, want system", out[0].Role)
	}
}

func TestCompactSummarizeFallsBackToTruncateWithoutAChatModel(t *testing.T) {
	history := makeHistory(10, strings.Repeat("x", 10000))
	cfg := CompactionConfig{ModelLimit: 5000, Margin: 100, PreservedRecent: 2, Strategy: CompactSummarize}

	out, err := compact(context.Background(), cfg, history, nil)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(out) != 6 {
		t.Errorf("len(out) = %d, want 6 (truncate fallback)", len(out))
	}
}

func TestCompactCustomDelegatesToConfiguredCompactor(t *testing.T) {
	history := makeHistory(10, strings.Repeat("x", 10000))
	called := false
	cfg := CompactionConfig{
		ModelLimit: 5000, Margin: 100, PreservedRecent: 2, Strategy: CompactCustom,
		Custom: func(ctx context.Context, toCompact []model.Message) ([]model.Message, error) {
			called = true
			return []model.Message{{Role: model.RoleSystem, Content: "custom-compacted"}}, nil
		},
	}

	out, err := compact(context.Background(), cfg, history, nil)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !called {
		t.Error("expected the custom compactor to be invoked")
	}
	if len(out) != 3 || out[0].Content != "custom-compacted" {
		t.Errorf("out = %+v, want [custom-compacted, <2 preserved>]", out)
	}
}

func TestCompactWithoutCustomCompactorReturnsHistoryUnchanged(t *testing.T) {
	history := makeHistory(10, strings.Repeat("x", 10000))
	cfg := CompactionConfig{ModelLimit: 5000, Margin: 100, PreservedRecent: 2, Strategy: CompactCustom}

	out, err := compact(context.Background(), cfg, history, nil)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(out) != len(history) {
		t.Errorf("len(out) = %d, want %d unchanged when Custom is nil", len(out), len(history))
	}
}
