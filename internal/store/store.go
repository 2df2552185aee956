// Package store persists the conversation collection as one JSON document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sidekick/internal/chat"
)

const storeFileName = "conversations.json"

var (
	// ErrDirRequired indicates a missing store directory.
	ErrDirRequired = errors.New("store directory is required")
	// ErrNotFound indicates the conversation id is not in the collection.
	ErrNotFound = errors.New("conversation not found")
)

// Summary is the lightweight list-view projection of a conversation.
type Summary struct {
	ID            string
	Title         string
	Mode          chat.Mode
	LastUpdatedAt time.Time
}

// Store is a document-per-collection conversation store. The whole
// collection is re-read before every write so concurrent saves across
// conversations never lose each other's changes.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store writing to conversations.json under dir.
func NewStore(dir string) (*Store, error) {
	root := strings.TrimSpace(dir)
	if root == "" {
		return nil, ErrDirRequired
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", root, err)
	}
	return &Store{path: filepath.Join(root, storeFileName)}, nil
}

// GetSummaries returns list metadata ordered by last update, newest first.
func (s *Store) GetSummaries(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(all))
	for _, conv := range all {
		summaries = append(summaries, Summary{
			ID:            conv.ID,
			Title:         conv.Title,
			Mode:          conv.Mode,
			LastUpdatedAt: conv.LastUpdatedAt,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastUpdatedAt.After(summaries[j].LastUpdatedAt)
	})
	return summaries, nil
}

// Load returns the full conversation for id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return all[i].Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Save upserts the conversation by id, bumps its last-updated timestamp,
// and rewrites the collection.
func (s *Store) Save(ctx context.Context, conv *chat.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return err
	}

	record := conv.Clone()
	record.LastUpdatedAt = time.Now().UTC()
	conv.LastUpdatedAt = record.LastUpdatedAt

	replaced := false
	for i := range all {
		if all[i].ID == record.ID {
			all[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, record)
	}
	return s.saveAll(all)
}

// Delete removes the conversation by id and rewrites the collection.
// Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return err
	}

	kept := all[:0]
	for _, conv := range all {
		if conv.ID != id {
			kept = append(kept, conv)
		}
	}
	return s.saveAll(kept)
}

// loadAll reads the collection and normalizes interrupted transient states:
// an in-flight status cannot legitimately survive a restart, so it loads
// as failed.
func (s *Store) loadAll() ([]*chat.Conversation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store file %s: %w", s.path, err)
	}

	var all []*chat.Conversation
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", s.path, err)
	}

	for _, conv := range all {
		for i := range conv.Messages {
			if conv.Messages[i].Status.Transient() {
				conv.Messages[i].Status = chat.StatusFailed
			}
		}
	}
	return all, nil
}

func (s *Store) saveAll(all []*chat.Conversation) error {
	if all == nil {
		all = []*chat.Conversation{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write store file %s: %w", s.path, err)
	}
	return nil
}
