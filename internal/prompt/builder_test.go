package prompt

import (
	"strings"
	"testing"
	"time"

	"sidekick/internal/chat"
)

func sentMessage(role chat.Role, content string, at time.Time) chat.Message {
	msg := chat.NewAssistantMessage(content)
	msg.Role = role
	msg.CreatedAt = at
	return msg
}

func TestBuildUsesModeInstruction(t *testing.T) {
	t.Parallel()

	conv := chat.NewConversation()
	conv.Mode = chat.ModeRefactor

	req := Build(conv)
	if req.Instruction != chat.ModeRefactor.Instructions() {
		t.Fatalf("Build() instruction = %q, want refactor instruction", req.Instruction)
	}
	if len(req.Messages) != 0 {
		t.Fatalf("Build() messages = %d, want 0 for empty conversation", len(req.Messages))
	}
}

func TestBuildInjectsSummaryAsLeadingSystemTurn(t *testing.T) {
	t.Parallel()

	conv := chat.NewConversation()
	base := time.Now().UTC()
	conv.Messages = append(conv.Messages, sentMessage(chat.RoleUser, "question", base))
	conv.Summary = "earlier context"
	at := base.Add(-time.Hour)
	conv.SummaryUpdatedAt = &at

	req := Build(conv)
	if len(req.Messages) != 2 {
		t.Fatalf("Build() messages = %d, want 2", len(req.Messages))
	}
	head := req.Messages[0]
	if head.Role != chat.RoleSystem {
		t.Fatalf("leading message role = %q, want system", head.Role)
	}
	if !strings.Contains(head.Content, "earlier context") || !strings.Contains(head.Content, "for context only") {
		t.Fatalf("summary turn content = %q, want context-tagged summary", head.Content)
	}
	if !head.CreatedAt.Equal(at) {
		t.Fatalf("summary turn timestamp = %v, want %v", head.CreatedAt, at)
	}
}

func TestBuildSkipsSummaryWhenEmpty(t *testing.T) {
	t.Parallel()

	conv := chat.NewConversation()
	conv.Messages = append(conv.Messages, sentMessage(chat.RoleUser, "hi", time.Now().UTC()))

	req := Build(conv)
	if len(req.Messages) != 1 || req.Messages[0].Role != chat.RoleUser {
		t.Fatalf("Build() = %#v, want only the user message", req.Messages)
	}
}

func TestBuildSkipsTransientPlaceholders(t *testing.T) {
	t.Parallel()

	conv := chat.NewConversation()
	base := time.Now().UTC()
	conv.Messages = append(conv.Messages,
		sentMessage(chat.RoleUser, "first", base),
		chat.NewTypingMessage(),
		chat.NewStreamingMessage("partial"),
		sentMessage(chat.RoleUser, "second", base.Add(time.Second)),
	)

	req := Build(conv)
	if len(req.Messages) != 2 {
		t.Fatalf("Build() messages = %d, want 2 (placeholders skipped)", len(req.Messages))
	}
	if req.Messages[0].Content != "first" || req.Messages[1].Content != "second" {
		t.Fatalf("Build() window = [%q, %q], want chronological [first, second]",
			req.Messages[0].Content, req.Messages[1].Content)
	}
}

func TestBuildWindowIsBoundedRecentSuffix(t *testing.T) {
	t.Parallel()

	conv := chat.NewConversation()
	base := time.Now().UTC()
	// Each message estimates to 1000/4+1 = 251 tokens; with 500 overhead
	// reserved, 21 of them cannot all fit in the 6000 budget.
	body := strings.Repeat("x", 1000)
	for i := 0; i < 30; i++ {
		conv.Messages = append(conv.Messages,
			sentMessage(chat.RoleUser, body, base.Add(time.Duration(i)*time.Second)))
	}

	req := Build(conv)
	if len(req.Messages) == 0 || len(req.Messages) >= 30 {
		t.Fatalf("Build() window = %d messages, want a strict non-empty subset", len(req.Messages))
	}

	total := 500
	for _, msg := range req.Messages {
		total += chat.EstimateTokens(msg.Content)
	}
	if total > 6000 {
		t.Fatalf("Build() estimated cost = %d, want <= 6000", total)
	}

	// Suffix property: the window must be the most recent messages in order.
	offset := len(conv.Messages) - len(req.Messages)
	for i, msg := range req.Messages {
		if msg.ClientID != conv.Messages[offset+i].ClientID {
			t.Fatalf("window position %d is not the contiguous recent suffix", i)
		}
	}
}
