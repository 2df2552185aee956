// Package mockservice provides a scripted chat service for tests and
// offline runs.
package mockservice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"sidekick/internal/chat"
	"sidekick/internal/llm"
	"sidekick/internal/prompt"
)

var cannedReplies = []string{
	"Got it! Let me think about that for a second...",
	"Interesting question. How would you approach it?",
	"If I were implementing this, I'd start by breaking it into smaller steps.",
	"That sounds like a real-world scenario. Tell me more about the constraints.",
	"I hear you. Let's try to narrow this down.",
}

// Service emits scripted results for deterministic tests. The zero value
// completes with an empty reply; set the fields to script behavior.
type Service struct {
	Reply       string
	CompleteErr error

	Fragments []string
	StreamErr error

	SummaryText  string
	SummarizeErr error

	// Delay is applied before each reply and between stream fragments.
	Delay time.Duration

	mu             sync.Mutex
	completeCalls  int
	streamCalls    int
	summarizeCalls int
	lastSummarized []chat.Message
}

// NewCanned returns a service that answers with a random canned reply
// echoing the last user message, for offline runs.
func NewCanned() *Service {
	return &Service{Delay: 300 * time.Millisecond}
}

// Complete returns the scripted reply as a sent assistant message.
func (s *Service) Complete(ctx context.Context, req prompt.Request) (chat.Message, error) {
	s.mu.Lock()
	s.completeCalls++
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return chat.Message{}, err
	}
	if s.CompleteErr != nil {
		return chat.Message{}, s.CompleteErr
	}

	reply := s.Reply
	if reply == "" {
		reply = s.cannedReply(req)
	}
	return chat.NewAssistantMessage(reply), nil
}

// Stream emits the scripted fragments in order, then the terminal event.
func (s *Service) Stream(ctx context.Context, req prompt.Request) (<-chan llm.Event, error) {
	s.mu.Lock()
	s.streamCalls++
	s.mu.Unlock()

	fragments := append([]string(nil), s.Fragments...)
	if len(fragments) == 0 && s.StreamErr == nil && s.Reply == "" {
		// Unscripted stream falls back to word-by-word canned output.
		for _, word := range strings.SplitAfter(s.cannedReply(req), " ") {
			fragments = append(fragments, word)
		}
	}

	events := make(chan llm.Event, 1)
	go func() {
		defer close(events)
		for _, fragment := range fragments {
			if err := s.wait(ctx); err != nil {
				llm.SendTerminalEvent(events, llm.Event{Type: llm.EventError, Err: err})
				return
			}
			if err := llm.SendEvent(ctx, events, llm.Event{Type: llm.EventTextDelta, Text: fragment}); err != nil {
				llm.SendTerminalEvent(events, llm.Event{Type: llm.EventError, Err: err})
				return
			}
		}
		if s.StreamErr != nil {
			_ = llm.SendEvent(ctx, events, llm.Event{Type: llm.EventError, Err: s.StreamErr})
			return
		}
		_ = llm.SendEvent(ctx, events, llm.Event{Type: llm.EventDone})
	}()
	return events, nil
}

// Summarize records its input and returns the scripted summary.
func (s *Service) Summarize(ctx context.Context, messages []chat.Message) (string, error) {
	s.mu.Lock()
	s.summarizeCalls++
	s.lastSummarized = append([]chat.Message(nil), messages...)
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if s.SummarizeErr != nil {
		return "", s.SummarizeErr
	}
	return s.SummaryText, nil
}

// CompleteCalls reports how many blocking completions were requested.
func (s *Service) CompleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls
}

// StreamCalls reports how many streams were requested.
func (s *Service) StreamCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCalls
}

// SummarizeCalls reports how many summarizations were requested.
func (s *Service) SummarizeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summarizeCalls
}

// LastSummarized returns the messages handed to the latest Summarize call.
func (s *Service) LastSummarized() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.lastSummarized...)
}

func (s *Service) cannedReply(req prompt.Request) string {
	base := cannedReplies[rand.IntN(len(cannedReplies))]
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			return fmt.Sprintf("%s\n\nYou said: %q", base, req.Messages[i].Content)
		}
	}
	return base
}

func (s *Service) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	return llm.SleepContext(ctx, s.Delay)
}
