package tui

import (
	"strings"
	"testing"

	"sidekick/internal/chat"
)

func TestChatModelRendersRoles(t *testing.T) {
	t.Parallel()

	model := NewChatModel(nil)
	user := chat.NewUserMessage("how do goroutines work?")
	user.Status = chat.StatusSent
	model.SetMessages([]chat.Message{user, chat.NewAssistantMessage("They are lightweight threads.")})

	view := model.Render(80, ResolveTheme("dark"), "spin")
	if !strings.Contains(view, "you:") {
		t.Fatalf("Render() = %q, want user prefix", view)
	}
	if !strings.Contains(view, "assistant:") {
		t.Fatalf("Render() = %q, want assistant prefix", view)
	}
	if !strings.Contains(view, "lightweight threads") {
		t.Fatalf("Render() = %q, want assistant content", view)
	}
}

func TestChatModelRendersPendingStates(t *testing.T) {
	t.Parallel()

	model := NewChatModel(nil)
	model.SetMessages([]chat.Message{chat.NewTypingMessage()})
	view := model.Render(80, ResolveTheme("dark"), "* thinking")
	if !strings.Contains(view, "* thinking") {
		t.Fatalf("Render() = %q, want spinner view for typing", view)
	}

	model.SetMessages([]chat.Message{chat.NewStreamingMessage("partial answ")})
	view = model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "partial answ▌") {
		t.Fatalf("Render() = %q, want streaming cursor", view)
	}

	model.SetMessages([]chat.Message{chat.NewFailedMessage("request timed out")})
	view = model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "error:") || !strings.Contains(view, "request timed out") {
		t.Fatalf("Render() = %q, want failure line", view)
	}
}

func TestChatModelSummaryNote(t *testing.T) {
	t.Parallel()

	model := NewChatModel(nil)
	model.SetSummary("- earlier context")
	model.SetMessages([]chat.Message{chat.NewAssistantMessage("hi")})
	view := model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "earlier messages summarized") {
		t.Fatalf("Render() = %q, want summary note", view)
	}
}

func TestChatModelViewportFollowsBottom(t *testing.T) {
	t.Parallel()

	model := NewChatModel(nil)
	model.SetViewportHeight(3)
	var msgs []chat.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, chat.NewAssistantMessage("reply "+string(rune('a'+i))))
	}
	model.SetMessages(msgs)

	view := model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "reply j") {
		t.Fatalf("Render() = %q, want latest message visible", view)
	}
	if strings.Contains(view, "reply a") {
		t.Fatalf("Render() = %q, want oldest message scrolled out", view)
	}

	model.ScrollToTop()
	view = model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "reply a") {
		t.Fatalf("Render() after ScrollToTop = %q, want oldest message", view)
	}
}

func TestScrollClampTracksExpandedMarkdown(t *testing.T) {
	t.Parallel()

	// The renderer expands one source line to four rendered lines; the
	// clamp must follow the rendered height or the bottom is unreachable.
	model := NewChatModel(func(string) string {
		return "line one\nline two\nline three\nline four"
	})
	model.SetViewportHeight(2)
	model.SetMessages([]chat.Message{chat.NewAssistantMessage("# heading")})

	model.ScrollToBottom()
	view := model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "line four") {
		t.Fatalf("Render() at bottom = %q, want final rendered line", view)
	}
	if strings.Contains(view, "line one") {
		t.Fatalf("Render() at bottom = %q, want top lines scrolled out", view)
	}
}

func TestMarkdownRendererApplied(t *testing.T) {
	t.Parallel()

	model := NewChatModel(func(string) string { return "RENDERED" })
	model.SetMessages([]chat.Message{chat.NewAssistantMessage("# heading")})
	view := model.Render(80, ResolveTheme("dark"), "")
	if !strings.Contains(view, "RENDERED") {
		t.Fatalf("Render() = %q, want markdown renderer output", view)
	}
}
