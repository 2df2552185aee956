package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"sidekick/internal/llm"
)

// ErrConversationNotOpen indicates the requested conversation id has no
// open engine.
var ErrConversationNotOpen = errors.New("conversation is not open")

// ManagerConfig configures Manager creation.
type ManagerConfig struct {
	Service   llm.Service
	Store     Store
	Streaming bool
	Logger    zerolog.Logger
}

// Manager owns the set of open conversation engines and tracks which one
// the UI is looking at. It always holds at least one engine.
type Manager struct {
	service   llm.Service
	store     Store
	streaming bool
	logger    zerolog.Logger

	mu       sync.Mutex
	engines  []*Engine
	selected string
}

// NewManager creates a manager holding one fresh conversation.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Service == nil {
		return nil, ErrServiceRequired
	}
	m := &Manager{
		service:   cfg.Service,
		store:     cfg.Store,
		streaming: cfg.Streaming,
		logger:    cfg.Logger,
	}
	m.mu.Lock()
	m.appendFreshLocked()
	m.mu.Unlock()
	return m, nil
}

// LoadAll replaces the open set with every stored conversation, newest
// first, and selects the most recent. With nothing stored the current set
// is kept. Conversations that fail to load individually are skipped.
func (m *Manager) LoadAll(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	summaries, err := m.store.GetSummaries(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return nil
	}

	var engines []*Engine
	for _, summary := range summaries {
		conv, err := m.store.Load(ctx, summary.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("conversation", summary.ID).Msg("skipping unreadable conversation")
			continue
		}
		engine, err := NewEngine(EngineConfig{
			Service:      m.service,
			Store:        m.store,
			Conversation: conv,
			Streaming:    m.streaming,
			Logger:       m.logger,
		})
		if err != nil {
			return err
		}
		engines = append(engines, engine)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(engines) == 0 {
		return nil
	}
	m.engines = engines
	m.selected = engines[0].ID()
	return nil
}

// New opens a fresh conversation and selects it.
func (m *Manager) New() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendFreshLocked()
}

// Engines returns the open engines in display order.
func (m *Manager) Engines() []*Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Engine(nil), m.engines...)
}

// Select makes the given conversation current.
func (m *Manager) Select(id string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, engine := range m.engines {
		if engine.ID() == id {
			m.selected = id
			return engine, nil
		}
	}
	return nil, ErrConversationNotOpen
}

// Selected returns the current engine.
func (m *Manager) Selected() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, engine := range m.engines {
		if engine.ID() == m.selected {
			return engine
		}
	}
	if len(m.engines) == 0 {
		return m.appendFreshLocked()
	}
	m.selected = m.engines[0].ID()
	return m.engines[0]
}

// Delete cancels and closes the conversation and removes it from the
// store. Deleting the selected conversation moves selection to the next
// remaining one, opening a fresh conversation if none remain. Unknown ids
// are a no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	kept := m.engines[:0]
	var deleted *Engine
	for _, engine := range m.engines {
		if engine.ID() == id && deleted == nil {
			deleted = engine
			continue
		}
		kept = append(kept, engine)
	}
	m.engines = kept
	if deleted != nil && m.selected == id {
		if len(m.engines) > 0 {
			m.selected = m.engines[0].ID()
		} else {
			m.appendFreshLocked()
		}
	}
	m.mu.Unlock()

	if deleted == nil {
		return nil
	}
	deleted.Cancel()
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// appendFreshLocked opens a new empty conversation and selects it.
// Callers hold m.mu.
func (m *Manager) appendFreshLocked() *Engine {
	engine, _ := NewEngine(EngineConfig{
		Service:   m.service,
		Store:     m.store,
		Streaming: m.streaming,
		Logger:    m.logger,
	})
	m.engines = append([]*Engine{engine}, m.engines...)
	m.selected = engine.ID()
	return engine
}
