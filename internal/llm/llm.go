// Package llm defines the chat transport contract and its retry policy.
package llm

import (
	"context"
	"errors"

	"sidekick/internal/chat"
	"sidekick/internal/prompt"
)

var (
	// ErrMissingEndpoint indicates a missing endpoint URL at construction.
	ErrMissingEndpoint = errors.New("missing endpoint")
	// ErrMissingDeployment indicates a missing deployment name at construction.
	ErrMissingDeployment = errors.New("missing deployment name")
	// ErrMissingAPIKey indicates missing API credentials at construction.
	ErrMissingAPIKey = errors.New("missing api key")
)

// EventType identifies stream event variants.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one item in a streamed assistant turn. The producing goroutine
// closes the channel after the terminal done or error event.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Service is the remote model endpoint capability contract.
//
// Complete returns one finished assistant message; runtime failures are
// converted into a failed assistant message rather than an error, except
// cancellation, which propagates as the context error. Stream produces a
// cancellable sequence of text fragments for a single assistant turn.
// Summarize condenses prior sent messages into summary text.
type Service interface {
	Complete(ctx context.Context, req prompt.Request) (chat.Message, error)
	Stream(ctx context.Context, req prompt.Request) (<-chan Event, error)
	Summarize(ctx context.Context, messages []chat.Message) (string, error)
}

// SendEvent forwards an event unless the context has already been canceled.
func SendEvent(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- event:
		return nil
	}
}

// SendTerminalEvent emits a terminal event without cancellation checks.
// The events channel must have buffer capacity of at least 1 so that the
// producer does not hang when the consumer has stopped reading.
func SendTerminalEvent(events chan<- Event, event Event) {
	select {
	case events <- event:
	default:
	}
}
