package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the placeholder title before the first message arrives.
const DefaultTitle = "New conversation"

// charsPerToken is the rough average used for prompt budgeting. Token
// estimation is a deterministic approximation, not an exact tokenizer.
const charsPerToken = 4

// Conversation is one chat thread: an ordered, chronological message
// sequence plus its running summary. A conversation is owned by exactly one
// session engine at a time; the store owns the durable copy.
type Conversation struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Messages         []Message  `json:"messages"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUpdatedAt    time.Time  `json:"last_updated_at"`
	Mode             Mode       `json:"mode"`
	Summary          string     `json:"summary,omitempty"`
	SummaryUpdatedAt *time.Time `json:"summary_updated_at,omitempty"`
}

// NewConversation creates an empty conversation in general mode.
func NewConversation() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:            uuid.NewString(),
		Title:         DefaultTitle,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Mode:          ModeGeneral,
	}
}

// Touch bumps the last-updated timestamp.
func (c *Conversation) Touch() {
	c.LastUpdatedAt = time.Now().UTC()
}

// EstimatedTokens approximates the token cost of the full message sequence.
func (c *Conversation) EstimatedTokens() int {
	total := 0
	for _, msg := range c.Messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Conversation) Clone() *Conversation {
	copied := *c
	copied.Messages = append([]Message(nil), c.Messages...)
	if c.SummaryUpdatedAt != nil {
		at := *c.SummaryUpdatedAt
		copied.SummaryUpdatedAt = &at
	}
	return &copied
}

// EstimateTokens approximates token cost as length/4 + 1, 0 for blank text.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(text)/charsPerToken + 1
}
