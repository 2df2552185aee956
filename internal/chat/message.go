package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status tracks a message through its send lifecycle.
type Status string

const (
	// StatusSending marks a user message whose round trip has not completed.
	StatusSending Status = "sending"
	// StatusTyping marks an assistant placeholder with no content yet.
	StatusTyping Status = "typing"
	// StatusStreaming marks an assistant message receiving incremental content.
	StatusStreaming Status = "streaming"
	// StatusSent is the terminal success state.
	StatusSent Status = "sent"
	// StatusFailed is the terminal failure state.
	StatusFailed Status = "failed"
)

// Transient reports whether the status implies an in-flight operation.
func (s Status) Transient() bool {
	return s == StatusSending || s == StatusTyping || s == StatusStreaming
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Message is one turn fragment in a conversation. ClientID is assigned at
// creation and stable for the message's lifetime; ServerID is filled in only
// when the remote endpoint acknowledges the message and is never required
// for correctness.
type Message struct {
	ClientID    string    `json:"client_id"`
	ServerID    string    `json:"server_id,omitempty"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	Status      Status    `json:"status"`
	ErrorDetail string    `json:"error,omitempty"`
}

// NewUserMessage creates an outgoing user turn awaiting its round trip.
func NewUserMessage(content string) Message {
	return Message{
		ClientID:  uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Status:    StatusSending,
	}
}

// NewTypingMessage creates an empty assistant placeholder.
func NewTypingMessage() Message {
	return Message{
		ClientID:  uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now().UTC(),
		Status:    StatusTyping,
	}
}

// NewStreamingMessage creates an assistant message holding the first
// received fragment.
func NewStreamingMessage(fragment string) Message {
	return Message{
		ClientID:  uuid.NewString(),
		Role:      RoleAssistant,
		Content:   fragment,
		CreatedAt: time.Now().UTC(),
		Status:    StatusStreaming,
	}
}

// NewAssistantMessage creates a completed assistant turn.
func NewAssistantMessage(content string) Message {
	return Message{
		ClientID:  uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Status:    StatusSent,
	}
}

// NewFailedMessage creates a terminal failed assistant turn. The detail is
// both the visible content and the error record.
func NewFailedMessage(detail string) Message {
	return Message{
		ClientID:    uuid.NewString(),
		Role:        RoleAssistant,
		Content:     detail,
		CreatedAt:   time.Now().UTC(),
		Status:      StatusFailed,
		ErrorDetail: detail,
	}
}

// NewSystemMessage creates a synthetic system turn, used for injecting the
// running summary as context.
func NewSystemMessage(content string, createdAt time.Time) Message {
	return Message{
		ClientID:  uuid.NewString(),
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: createdAt,
		Status:    StatusSent,
	}
}
