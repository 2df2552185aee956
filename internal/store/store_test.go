package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sidekick/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestNewStoreRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewStore("  "); !errors.Is(err, ErrDirRequired) {
		t.Fatalf("NewStore() error = %v, want ErrDirRequired", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	conv := chat.NewConversation()
	conv.Title = "budget question"
	conv.Mode = chat.ModeExplain
	conv.Summary = "earlier context"
	at := time.Now().UTC().Truncate(time.Second)
	conv.SummaryUpdatedAt = &at

	user := chat.NewUserMessage("how do slices grow?")
	user.Status = chat.StatusSent
	reply := chat.NewAssistantMessage("amortized doubling")
	reply.ServerID = "chatcmpl-9"
	conv.Messages = append(conv.Messages, user, reply)

	if err := s.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Title != conv.Title || loaded.Mode != conv.Mode || loaded.Summary != conv.Summary {
		t.Fatalf("Load() = %+v, want saved fields preserved", loaded)
	}
	if loaded.SummaryUpdatedAt == nil || !loaded.SummaryUpdatedAt.Equal(at) {
		t.Fatalf("Load() summary timestamp = %v, want %v", loaded.SummaryUpdatedAt, at)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("Load() messages = %d, want 2", len(loaded.Messages))
	}
	if loaded.Messages[0].ClientID != user.ClientID || loaded.Messages[1].ServerID != "chatcmpl-9" {
		t.Fatalf("Load() message identity not preserved: %+v", loaded.Messages)
	}
}

func TestLoadNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoadNormalizesTransientStatuses(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	conv := chat.NewConversation()
	conv.Messages = append(conv.Messages,
		chat.NewUserMessage("still sending"),
		chat.NewTypingMessage(),
		chat.NewStreamingMessage("partial answer"),
	)
	done := chat.NewAssistantMessage("finished")
	conv.Messages = append(conv.Messages, done)

	if err := s.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for i, msg := range loaded.Messages[:3] {
		if msg.Status != chat.StatusFailed {
			t.Errorf("message %d status = %q, want failed after load", i, msg.Status)
		}
	}
	if loaded.Messages[3].Status != chat.StatusSent {
		t.Fatalf("terminal message status = %q, want sent untouched", loaded.Messages[3].Status)
	}
	// Streaming content is kept even though the status normalizes.
	if loaded.Messages[2].Content != "partial answer" {
		t.Fatalf("streaming content = %q, want preserved", loaded.Messages[2].Content)
	}
}

func TestSaveUpsertsById(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	conv := chat.NewConversation()
	if err := s.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	conv.Title = "renamed"
	if err := s.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save(again) error = %v", err)
	}

	summaries, err := s.GetSummaries(context.Background())
	if err != nil {
		t.Fatalf("GetSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("GetSummaries() = %d entries, want 1 after upsert", len(summaries))
	}
	if summaries[0].Title != "renamed" {
		t.Fatalf("summary title = %q, want renamed", summaries[0].Title)
	}
}

func TestGetSummariesOrdersByLastUpdatedDesc(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	first := chat.NewConversation()
	first.Title = "first"
	second := chat.NewConversation()
	second.Title = "second"

	if err := s.Save(context.Background(), first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Save(context.Background(), second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}

	summaries, err := s.GetSummaries(context.Background())
	if err != nil {
		t.Fatalf("GetSummaries() error = %v", err)
	}
	if len(summaries) != 2 || summaries[0].Title != "second" {
		t.Fatalf("GetSummaries() order = %+v, want newest first", summaries)
	}
}

func TestDeleteRemovesConversation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	conv := chat.NewConversation()
	if err := s.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(context.Background(), conv.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Load(context.Background(), conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrNotFound", err)
	}
	// Deleting again is a no-op.
	if err := s.Delete(context.Background(), conv.ID); err != nil {
		t.Fatalf("Delete(again) error = %v", err)
	}
}

func TestConcurrentSavesKeepAllConversations(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	conversations := make([]*chat.Conversation, 8)
	for i := range conversations {
		conversations[i] = chat.NewConversation()
	}

	var wg sync.WaitGroup
	for _, conv := range conversations {
		wg.Add(1)
		go func(c *chat.Conversation) {
			defer wg.Done()
			if err := s.Save(context.Background(), c); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(conv)
	}
	wg.Wait()

	summaries, err := s.GetSummaries(context.Background())
	if err != nil {
		t.Fatalf("GetSummaries() error = %v", err)
	}
	if len(summaries) != len(conversations) {
		t.Fatalf("GetSummaries() = %d entries, want %d (no lost updates)", len(summaries), len(conversations))
	}
}
