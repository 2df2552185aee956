// Package session orchestrates conversation turns: sending, stream
// consumption, message lifecycle, summarization, and persistence.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sidekick/internal/chat"
	"sidekick/internal/llm"
	"sidekick/internal/prompt"
	"sidekick/internal/store"
)

const (
	summarizeThresholdMessages = 40
	summarizeThresholdTokens   = 6000
	keepRecentMessages         = 10
	titleMaxLen                = 40

	noContentDetail       = "The model did not return any content."
	streamInterruptDetail = "The stream ended before the reply completed."
)

var (
	// ErrServiceRequired indicates a missing chat service dependency.
	ErrServiceRequired = errors.New("chat service is required")
	// ErrBusy indicates a send is already in flight for this conversation.
	ErrBusy = errors.New("a send is already in flight")
)

// Store is the durable conversation collection the session layer runs on.
type Store interface {
	GetSummaries(ctx context.Context) ([]store.Summary, error)
	Load(ctx context.Context, id string) (*chat.Conversation, error)
	Save(ctx context.Context, conv *chat.Conversation) error
	Delete(ctx context.Context, id string) error
}

// EventKind identifies observable conversation changes.
type EventKind string

const (
	EventMessageAdded   EventKind = "message_added"
	EventMessageUpdated EventKind = "message_updated"
	EventMessageRemoved EventKind = "message_removed"
	EventBusyChanged    EventKind = "busy_changed"
	EventTitleChanged   EventKind = "title_changed"
)

// Event is one change notification for the rendering collaborator.
type Event struct {
	Kind           EventKind
	ConversationID string
	Message        chat.Message
	Busy           bool
	Title          string
}

// Listener receives change notifications. Listeners are invoked outside
// the engine lock and must not call back into mutating engine methods.
type Listener func(Event)

// EngineConfig configures Engine creation.
type EngineConfig struct {
	Service      llm.Service
	Store        Store
	Conversation *chat.Conversation
	Streaming    bool
	Logger       zerolog.Logger
}

// Engine owns one conversation's observable message sequence and runs its
// turns. Sends within a conversation are serialized by the busy gate;
// engines for different conversations are independent.
type Engine struct {
	service   llm.Service
	store     Store
	logger    zerolog.Logger
	streaming bool

	mu         sync.Mutex
	conv       *chat.Conversation
	busy       bool
	cancel     context.CancelFunc
	listeners  []Listener
	persistSeq int

	persistMu   sync.Mutex
	persistHigh int
	saveWG      sync.WaitGroup
}

// NewEngine creates an engine for the given conversation, or a fresh empty
// conversation when none is supplied. The store may be nil for unsaved
// scratch sessions.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Service == nil {
		return nil, ErrServiceRequired
	}
	conv := cfg.Conversation
	if conv == nil {
		conv = chat.NewConversation()
	}
	return &Engine{
		service:   cfg.Service,
		store:     cfg.Store,
		logger:    cfg.Logger,
		streaming: cfg.Streaming,
		conv:      conv,
	}, nil
}

// ID returns the conversation id.
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.ID
}

// Title returns the current conversation title.
func (e *Engine) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Title
}

// SetTitle records a user-edited title and persists it.
func (e *Engine) SetTitle(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	e.mu.Lock()
	if e.conv.Title == title {
		e.mu.Unlock()
		return
	}
	e.conv.Title = title
	e.conv.Touch()
	id := e.conv.ID
	e.mu.Unlock()

	e.emit(Event{Kind: EventTitleChanged, ConversationID: id, Title: title})
	e.persist()
}

// Mode returns the conversation's operating mode.
func (e *Engine) Mode() chat.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Mode
}

// SetMode switches the operating mode and persists it.
func (e *Engine) SetMode(mode chat.Mode) {
	e.mu.Lock()
	if e.conv.Mode == mode {
		e.mu.Unlock()
		return
	}
	e.conv.Mode = mode
	e.conv.Touch()
	e.mu.Unlock()
	e.persist()
}

// Busy reports whether a send is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Summary returns the running summary text.
func (e *Engine) Summary() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Summary
}

// Messages returns a copy of the observable message sequence.
func (e *Engine) Messages() []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]chat.Message(nil), e.conv.Messages...)
}

// Conversation returns a deep copy of the conversation state.
func (e *Engine) Conversation() *chat.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone()
}

// Subscribe registers a change listener.
func (e *Engine) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, listener)
	e.mu.Unlock()
}

// Cancel aborts the in-flight send, if any. The partially built assistant
// message is discarded, not failed.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Send runs one turn: appends the user message, dispatches the bounded
// request, applies lifecycle transitions as results arrive, then checks
// summarization and persists. Empty input is a no-op. A second Send while
// one is in flight returns ErrBusy.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	sendCtx, cancel := context.WithCancel(ctx)
	e.busy = true
	e.cancel = cancel

	user := chat.NewUserMessage(text)
	e.conv.Messages = append(e.conv.Messages, user)
	e.conv.Touch()
	titled := false
	if len(e.conv.Messages) == 1 &&
		(strings.TrimSpace(e.conv.Title) == "" || e.conv.Title == chat.DefaultTitle) {
		e.conv.Title = deriveTitle(text)
		titled = true
	}
	id := e.conv.ID
	title := e.conv.Title
	e.mu.Unlock()

	e.emit(Event{Kind: EventMessageAdded, ConversationID: id, Message: user})
	if titled {
		e.emit(Event{Kind: EventTitleChanged, ConversationID: id, Title: title})
	}
	e.emit(Event{Kind: EventBusyChanged, ConversationID: id, Busy: true})
	e.persist()

	defer func() {
		cancel()
		e.mu.Lock()
		e.busy = false
		e.cancel = nil
		e.mu.Unlock()
		e.emit(Event{Kind: EventBusyChanged, ConversationID: id, Busy: false})
		e.persist()
	}()

	req := e.buildRequest()
	if e.streaming {
		e.sendStreaming(sendCtx, user.ClientID, req)
	} else {
		e.sendBlocking(sendCtx, user.ClientID, req)
	}

	// The check runs on the parent context so a canceled turn still gets
	// its compaction pass.
	e.summarizeIfNeeded(ctx)
	return nil
}

func (e *Engine) buildRequest() prompt.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return prompt.Build(e.conv)
}

func (e *Engine) sendBlocking(ctx context.Context, userID string, req prompt.Request) {
	typing := chat.NewTypingMessage()
	e.addMessage(typing)

	reply, err := e.service.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.removeMessage(typing.ClientID)
			return
		}
		e.failMessage(typing.ClientID, err.Error())
		return
	}

	e.removeMessage(typing.ClientID)
	e.addMessage(reply)
	if reply.Status != chat.StatusFailed {
		e.markStatus(userID, chat.StatusSent)
	}
}

func (e *Engine) sendStreaming(ctx context.Context, userID string, req prompt.Request) {
	typing := chat.NewTypingMessage()
	e.addMessage(typing)

	events, err := e.service.Stream(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.removeMessage(typing.ClientID)
			return
		}
		e.failMessage(typing.ClientID, err.Error())
		return
	}

	streamingID := ""
	doneSeen := false
	for ev := range events {
		switch ev.Type {
		case llm.EventTextDelta:
			if streamingID == "" {
				// First fragment: the placeholder gives way to the real
				// streaming message.
				e.removeMessage(typing.ClientID)
				streamed := chat.NewStreamingMessage(ev.Text)
				streamingID = streamed.ClientID
				e.addMessage(streamed)
				continue
			}
			e.appendFragment(streamingID, ev.Text)
		case llm.EventError:
			if errors.Is(ev.Err, context.Canceled) || ctx.Err() != nil {
				e.discardInFlight(typing.ClientID, streamingID)
				return
			}
			target := typing.ClientID
			if streamingID != "" {
				target = streamingID
			}
			e.failMessage(target, ev.Err.Error())
			return
		case llm.EventDone:
			doneSeen = true
		}
	}

	if ctx.Err() != nil {
		e.discardInFlight(typing.ClientID, streamingID)
		return
	}
	if !doneSeen {
		// A close without a terminal event means the producer died
		// mid-reply; never report that as success.
		target := typing.ClientID
		if streamingID != "" {
			target = streamingID
		}
		e.failMessage(target, streamInterruptDetail)
		return
	}
	if streamingID == "" {
		e.failMessage(typing.ClientID, noContentDetail)
		return
	}
	e.markStatus(streamingID, chat.StatusSent)
	e.markStatus(userID, chat.StatusSent)
}

// summarizeIfNeeded folds older sent messages into the running summary
// once the conversation exceeds the message-count or token threshold.
// Failures are logged and swallowed; the next qualifying send retries.
func (e *Engine) summarizeIfNeeded(ctx context.Context) {
	e.mu.Lock()
	tooMany := len(e.conv.Messages) > summarizeThresholdMessages
	tooLarge := e.conv.EstimatedTokens() > summarizeThresholdTokens
	if !tooMany && !tooLarge {
		e.mu.Unlock()
		return
	}
	cutoff := len(e.conv.Messages) - keepRecentMessages
	if cutoff < 0 {
		cutoff = 0
	}
	eligible := make([]chat.Message, 0, cutoff)
	for _, msg := range e.conv.Messages[:cutoff] {
		if msg.Status == chat.StatusSent {
			eligible = append(eligible, msg)
		}
	}
	id := e.conv.ID
	e.mu.Unlock()

	if len(eligible) == 0 {
		return
	}

	summary, err := e.service.Summarize(ctx, eligible)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation", id).Msg("summarization failed, keeping history")
		return
	}
	if strings.TrimSpace(summary) == "" {
		return
	}

	folded := make(map[string]bool, len(eligible))
	for _, msg := range eligible {
		folded[msg.ClientID] = true
	}

	var removed []chat.Message
	e.mu.Lock()
	if e.conv.Summary == "" {
		e.conv.Summary = summary
	} else {
		e.conv.Summary += "\n\n" + summary
	}
	now := time.Now().UTC()
	e.conv.SummaryUpdatedAt = &now
	kept := e.conv.Messages[:0]
	for _, msg := range e.conv.Messages {
		if folded[msg.ClientID] {
			removed = append(removed, msg)
			continue
		}
		kept = append(kept, msg)
	}
	e.conv.Messages = kept
	e.conv.Touch()
	e.mu.Unlock()

	for _, msg := range removed {
		e.emit(Event{Kind: EventMessageRemoved, ConversationID: id, Message: msg})
	}
	e.persist()
}

func (e *Engine) addMessage(msg chat.Message) {
	e.mu.Lock()
	e.conv.Messages = append(e.conv.Messages, msg)
	e.conv.Touch()
	id := e.conv.ID
	e.mu.Unlock()
	e.emit(Event{Kind: EventMessageAdded, ConversationID: id, Message: msg})
}

func (e *Engine) removeMessage(clientID string) {
	e.mu.Lock()
	var removed *chat.Message
	kept := e.conv.Messages[:0]
	for _, msg := range e.conv.Messages {
		if msg.ClientID == clientID && removed == nil {
			copied := msg
			removed = &copied
			continue
		}
		kept = append(kept, msg)
	}
	e.conv.Messages = kept
	if removed != nil {
		e.conv.Touch()
	}
	id := e.conv.ID
	e.mu.Unlock()

	if removed != nil {
		e.emit(Event{Kind: EventMessageRemoved, ConversationID: id, Message: *removed})
	}
}

// appendFragment applies a streamed fragment to the message identified by
// client id and emits an update notification.
func (e *Engine) appendFragment(clientID, fragment string) {
	e.mutateMessage(clientID, func(msg *chat.Message) {
		msg.Content += fragment
	})
}

func (e *Engine) markStatus(clientID string, status chat.Status) {
	e.mutateMessage(clientID, func(msg *chat.Message) {
		msg.Status = status
	})
}

func (e *Engine) failMessage(clientID, detail string) {
	e.mutateMessage(clientID, func(msg *chat.Message) {
		msg.Status = chat.StatusFailed
		msg.ErrorDetail = detail
		msg.Content = detail
	})
}

func (e *Engine) mutateMessage(clientID string, mutate func(*chat.Message)) {
	e.mu.Lock()
	var updated *chat.Message
	for i := range e.conv.Messages {
		if e.conv.Messages[i].ClientID == clientID {
			mutate(&e.conv.Messages[i])
			copied := e.conv.Messages[i]
			updated = &copied
			break
		}
	}
	if updated != nil {
		e.conv.Touch()
	}
	id := e.conv.ID
	e.mu.Unlock()

	if updated != nil {
		e.emit(Event{Kind: EventMessageUpdated, ConversationID: id, Message: *updated})
	}
}

func (e *Engine) discardInFlight(typingID, streamingID string) {
	if streamingID != "" {
		e.removeMessage(streamingID)
		return
	}
	e.removeMessage(typingID)
}

func (e *Engine) emit(event Event) {
	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, listener := range listeners {
		listener(event)
	}
}

// persist saves a snapshot asynchronously. Snapshots are sequenced so a
// stale snapshot never overwrites a newer one on disk.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	e.mu.Lock()
	e.persistSeq++
	seq := e.persistSeq
	snapshot := e.conv.Clone()
	e.mu.Unlock()

	e.saveWG.Add(1)
	go func() {
		defer e.saveWG.Done()
		e.persistMu.Lock()
		defer e.persistMu.Unlock()
		if seq < e.persistHigh {
			return
		}
		if err := e.store.Save(context.Background(), snapshot); err != nil {
			e.logger.Error().Err(err).Str("conversation", snapshot.ID).Msg("persist conversation failed")
			return
		}
		e.persistHigh = seq
	}()
}

// flushSaves blocks until queued persistence writes finish.
func (e *Engine) flushSaves() {
	e.saveWG.Wait()
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen]) + "..."
}
