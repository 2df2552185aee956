// Package openaiservice talks to an Azure-style OpenAI chat deployment
// through the official openai-go client.
package openaiservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"sidekick/internal/chat"
	"sidekick/internal/llm"
	"sidekick/internal/prompt"
)

const (
	defaultTemperature       = 0.3
	defaultMaxOutputTokens   = 512
	explainTemperatureDef    = 0.4
	explainMaxOutputTokens   = 1024
	summarizeTemperature     = 0.2
	summarizeMaxOutputTokens = 256

	completionFailedText = "An error occurred while calling the model."
	noValidResponseText  = "I didn't receive a valid response from the model."

	summarizeInstruction = "You are summarizing an earlier part of a programming-focused conversation. " +
		"Write a concise summary that captures key questions, answers, and decisions, " +
		"in 4-8 bullet points. Do not invent details."
)

// Config configures the service. Endpoint, Deployment, and APIKey are
// required; the remaining fields default to the standard profiles.
type Config struct {
	Endpoint   string
	Deployment string
	APIKey     string
	HTTPClient *http.Client

	Temperature     float64
	MaxOutputTokens int

	// The explain mode gets its own sampling profile.
	ExplainTemperature     float64
	ExplainMaxOutputTokens int
}

// Service implements llm.Service against one chat deployment.
type Service struct {
	client     openai.Client
	deployment string

	temperature            float64
	maxOutputTokens        int
	explainTemperature     float64
	explainMaxOutputTokens int

	backoff func(int) time.Duration
}

// New constructs the service. Configuration errors fail here, before any
// network call.
func New(cfg Config) (*Service, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	deployment := strings.TrimSpace(cfg.Deployment)
	apiKey := strings.TrimSpace(cfg.APIKey)

	if endpoint == "" {
		return nil, llm.ErrMissingEndpoint
	}
	if deployment == "" {
		return nil, llm.ErrMissingDeployment
	}
	if apiKey == "" {
		return nil, llm.ErrMissingAPIKey
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxOutputTokens := cfg.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}
	explainTemperature := cfg.ExplainTemperature
	if explainTemperature == 0 {
		explainTemperature = explainTemperatureDef
	}
	explainMax := cfg.ExplainMaxOutputTokens
	if explainMax <= 0 {
		explainMax = explainMaxOutputTokens
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(endpoint),
		option.WithHeader("api-key", apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // explicit retry behavior in this package
	)

	return &Service{
		client:                 client,
		deployment:             deployment,
		temperature:            temperature,
		maxOutputTokens:        maxOutputTokens,
		explainTemperature:     explainTemperature,
		explainMaxOutputTokens: explainMax,
		backoff:                llm.BackoffDelay,
	}, nil
}

// Complete executes one blocking chat completion with retries. Runtime
// failures become a terminal failed assistant message; cancellation
// propagates as the context error.
func (s *Service) Complete(ctx context.Context, req prompt.Request) (chat.Message, error) {
	params := s.completionParams(req)

	var resp *openai.ChatCompletion
	err := llm.Do(ctx, s.backoff, func(ctx context.Context) error {
		result, callErr := s.client.Chat.Completions.New(ctx, params)
		if callErr != nil {
			return classifyErr(ctx, callErr)
		}
		resp = result
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return chat.Message{}, err
		}
		return chat.NewFailedMessage(fmt.Sprintf("%s\n\nDetails: %s", completionFailedText, err.Error())), nil
	}

	text := completionText(resp)
	if strings.TrimSpace(text) == "" {
		return chat.NewFailedMessage(noValidResponseText), nil
	}

	reply := chat.NewAssistantMessage(text)
	reply.ServerID = resp.ID
	return reply, nil
}

// Stream executes one streaming chat completion, emitting text fragments
// on the returned channel. The stream itself is not retried.
func (s *Service) Stream(ctx context.Context, req prompt.Request) (<-chan llm.Event, error) {
	params := s.completionParams(req)

	events := make(chan llm.Event, 1)
	go func() {
		defer close(events)

		stream := s.client.Chat.Completions.NewStreaming(ctx, params)
		defer func() {
			_ = stream.Close()
		}()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if err := llm.SendEvent(ctx, events, llm.Event{Type: llm.EventTextDelta, Text: delta}); err != nil {
				llm.SendTerminalEvent(events, llm.Event{Type: llm.EventError, Err: err})
				return
			}
		}

		// Terminal events block until the consumer takes them; a dropped
		// terminal would make the close ambiguous. Cancellation is the
		// only way out, and the consumer resolves that from its context.
		if err := stream.Err(); err != nil {
			_ = llm.SendEvent(ctx, events, llm.Event{Type: llm.EventError, Err: fmt.Errorf("chat stream: %w", err)})
			return
		}
		if err := ctx.Err(); err != nil {
			llm.SendTerminalEvent(events, llm.Event{Type: llm.EventError, Err: err})
			return
		}
		_ = llm.SendEvent(ctx, events, llm.Event{Type: llm.EventDone})
	}()

	return events, nil
}

// Summarize condenses prior sent messages into a short bullet summary.
func (s *Service) Summarize(ctx context.Context, messages []chat.Message) (string, error) {
	ordered := append([]chat.Message(nil), messages...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(ordered)+1)
	wire = append(wire, openai.SystemMessage(summarizeInstruction))
	for _, msg := range ordered {
		switch msg.Role {
		case chat.RoleAssistant:
			wire = append(wire, openai.AssistantMessage(msg.Content))
		default:
			wire = append(wire, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       s.deployment,
		Messages:    wire,
		Temperature: openai.Float(summarizeTemperature),
		MaxTokens:   openai.Int(summarizeMaxOutputTokens),
	}

	var resp *openai.ChatCompletion
	err := llm.Do(ctx, s.backoff, func(ctx context.Context) error {
		result, callErr := s.client.Chat.Completions.New(ctx, params)
		if callErr != nil {
			return classifyErr(ctx, callErr)
		}
		resp = result
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	return strings.TrimSpace(completionText(resp)), nil
}

// completionParams renders the bounded request into wire form: system
// instruction first, then the window in chronological order.
func (s *Service) completionParams(req prompt.Request) openai.ChatCompletionNewParams {
	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.Instruction) != "" {
		wire = append(wire, openai.SystemMessage(req.Instruction))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleAssistant:
			wire = append(wire, openai.AssistantMessage(msg.Content))
		case chat.RoleSystem:
			wire = append(wire, openai.SystemMessage(msg.Content))
		default:
			wire = append(wire, openai.UserMessage(msg.Content))
		}
	}

	temperature := s.temperature
	maxTokens := s.maxOutputTokens
	if req.Mode == chat.ModeExplain {
		temperature = s.explainTemperature
		maxTokens = s.explainMaxOutputTokens
	}

	return openai.ChatCompletionNewParams{
		Model:       s.deployment,
		Messages:    wire,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}
}

func completionText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// classifyErr marks transient failures retryable: rate limiting, timeouts,
// server-side errors, network failures, and deadline expiry that is not a
// caller-initiated cancellation.
func classifyErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return llm.MarkRetryable(err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return llm.MarkRetryable(err)
		default:
			return err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return llm.MarkRetryable(err)
	}
	return err
}
