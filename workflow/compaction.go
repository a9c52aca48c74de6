package workflow

import (
	"context"
	"strings"

	"github.com/graphrun/agentengine/model"
)

// Default compaction thresholds (§4.5).
const (
	DefaultCompactionMargin    = 10000
	MinCompactionThreshold     = 1000
	DefaultPreservedRecent     = 5
)

// CompactionStrategy selects how history is shrunk once it risks exceeding
// the model's context window (§4.5, GLOSSARY "Compaction").
type CompactionStrategy string

const (
	// CompactTruncate drops the older half of the to-compact messages.
	CompactTruncate CompactionStrategy = "truncate"
	// CompactSummarize calls the provider to summarize the to-compact
	// messages into a single system message.
	CompactSummarize CompactionStrategy = "summarize"
	// CompactCustom delegates entirely to CompactionConfig.Custom.
	CompactCustom CompactionStrategy = "custom"
)

// CompactionConfig configures history compaction for reasoning nodes.
type CompactionConfig struct {
	Strategy        CompactionStrategy
	ModelLimit      int
	Margin          int
	PreservedRecent int
	Custom          Compactor
}

// Compactor is a caller-provided custom compaction strategy.
type Compactor func(ctx context.Context, history []model.Message) ([]model.Message, error)

func (c CompactionConfig) margin() int {
	if c.Margin > 0 {
		return c.Margin
	}
	return DefaultCompactionMargin
}

func (c CompactionConfig) preservedRecent() int {
	if c.PreservedRecent > 0 {
		return c.PreservedRecent
	}
	return DefaultPreservedRecent
}

// approxTokens estimates a message's token count as ceil(len(content)/4),
// the same coarse heuristic used throughout the agent-loop implementations
// surveyed for this engine.
func approxTokens(msg model.Message) int {
	n := len(msg.Content)
	return (n + 3) / 4
}

func totalApproxTokens(history []model.Message) int {
	total := 0
	for _, m := range history {
		total += approxTokens(m)
	}
	return total
}

// compact shrinks history to fit within modelLimit-margin when needed,
// preserving the most recent messages and compacting the rest per the
// configured strategy (§4.5). A history at or under the threshold is
// returned unchanged. A compacted history that still exceeds the threshold
// is compacted again on a further call, so a second call is not a no-op in
// that case.
func compact(ctx context.Context, cfg CompactionConfig, history []model.Message, chat model.ChatModel) ([]model.Message, error) {
	threshold := cfg.ModelLimit - cfg.margin()
	if threshold < MinCompactionThreshold {
		threshold = MinCompactionThreshold
	}
	if totalApproxTokens(history) <= threshold {
		return history, nil
	}

	recent := cfg.preservedRecent()
	if recent > len(history) {
		recent = len(history)
	}
	toCompact := history[:len(history)-recent]
	kept := history[len(history)-recent:]

	if len(toCompact) == 0 {
		return history, nil
	}

	switch cfg.Strategy {
	case CompactCustom:
		if cfg.Custom == nil {
			return history, nil
		}
		compacted, err := cfg.Custom(ctx, toCompact)
		if err != nil {
			return nil, err
		}
		return append(compacted, kept...), nil

	case CompactSummarize:
		if chat == nil {
			return truncateOldHalf(toCompact, kept), nil
		}
		summary, err := summarize(ctx, chat, toCompact)
		if err != nil {
			return nil, err
		}
		summaryMsg := model.Message{
			Role:    model.RoleSystem,
			Content: "[Previous conversation summary]: " + summary,
		}
		return append([]model.Message{summaryMsg}, kept...), nil

	default: // CompactTruncate or unset
		return truncateOldHalf(toCompact, kept), nil
	}
}

func truncateOldHalf(toCompact, kept []model.Message) []model.Message {
	half := len(toCompact) / 2
	remaining := toCompact[half:]
	out := make([]model.Message, 0, len(remaining)+len(kept))
	out = append(out, remaining...)
	out = append(out, kept...)
	return out
}

func summarize(ctx context.Context, chat model.ChatModel, toCompact []model.Message) (string, error) {
	var sb strings.Builder
	for _, m := range toCompact {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Summarize the following conversation concisely, preserving facts and decisions relevant to continuing the task."},
		{Role: model.RoleUser, Content: sb.String()},
	}
	out, err := chat.Chat(ctx, messages, nil, nil)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}
