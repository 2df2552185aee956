// Package prompt turns a full conversation into a token-bounded request.
package prompt

import (
	"strings"

	"sidekick/internal/chat"
)

const (
	maxPromptTokens      = 6000
	systemOverheadTokens = 500

	summaryPreamble = "Summary of earlier conversation (for context only, do not repeat verbatim): "
)

// Request is the bounded payload dispatched to the chat transport.
type Request struct {
	Mode        chat.Mode
	Instruction string
	Messages    []chat.Message
}

// Build renders the conversation into a bounded request: the mode's fixed
// instruction, an optional synthetic system turn carrying the running
// summary, and a budget-bounded chronological suffix of the history.
func Build(conv *chat.Conversation) Request {
	messages := make([]chat.Message, 0, len(conv.Messages)+1)

	if strings.TrimSpace(conv.Summary) != "" {
		at := conv.CreatedAt
		if conv.SummaryUpdatedAt != nil {
			at = *conv.SummaryUpdatedAt
		}
		messages = append(messages, chat.NewSystemMessage(summaryPreamble+conv.Summary, at))
	}

	messages = append(messages, truncatedHistory(conv)...)

	return Request{
		Mode:        conv.Mode,
		Instruction: conv.Mode.Instructions(),
		Messages:    messages,
	}
}

// truncatedHistory walks newest to oldest, skipping in-flight placeholders,
// and stops before the estimated budget would be exceeded. The summary and
// instruction overhead is reserved up front, so the window always holds the
// most recent messages without silently exceeding the budget.
func truncatedHistory(conv *chat.Conversation) []chat.Message {
	window := make([]chat.Message, 0, len(conv.Messages))
	used := systemOverheadTokens

	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		// Typing/streaming placeholders must never be sent back to the model.
		if msg.Status == chat.StatusTyping || msg.Status == chat.StatusStreaming {
			continue
		}

		cost := chat.EstimateTokens(msg.Content)
		if used+cost > maxPromptTokens {
			break
		}
		used += cost
		window = append(window, msg)
	}

	// Back to chronological order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}
