package workflow

import (
	"testing"

	"github.com/graphrun/agentengine/model"
)

func TestComposeMessagesOmitsSystemMessageWhenPromptEmpty(t *testing.T) {
	msgs := composeMessages("", nil, "hello")
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("msgs = %+v, want a single user message", msgs)
	}
}

func TestComposeMessagesOrdersSystemHistoryThenUser(t *testing.T) {
	history := []model.Message{{Role: model.RoleAssistant, Content: "prior turn"}}
	msgs := composeMessages("be helpful", history, "hi")
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	if msgs[0].Role != model.RoleSystem || msgs[0].Content != "be helpful" {
		t.Errorf("msgs[0] = %+v, want the system prompt first", msgs[0])
	}
	if msgs[1].Content != "prior turn" {
		t.Errorf("msgs[1] = %+v, want the history message second", msgs[1])
	}
	if msgs[2].Role != model.RoleUser || msgs[2].Content != "hi" {
		t.Errorf("msgs[2] = %+v, want the user input last", msgs[2])
	}
}

func TestModelNameOrDefaultPrefersExplicitName(t *testing.T) {
	if got := modelNameOrDefault("explicit", "fallback"); got != "explicit" {
		t.Errorf("got %q, want explicit", got)
	}
	if got := modelNameOrDefault("", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback when name is empty", got)
	}
}
