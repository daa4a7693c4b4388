// Package completion provides chat completion via langchaingo.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyMessages indicates an empty message sequence.
	ErrEmptyMessages = errors.New("empty messages")

	// ErrNoCompletion indicates the model returned no choices.
	ErrNoCompletion = errors.New("model returned no completion")
)

// Role tags a message turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Config holds configuration for the completion service.
type Config struct {
	// BaseURL is the base URL of the OpenAI-compatible API.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// APIKey authenticates against the API.
	APIKey string

	// Temperature controls sampling randomness.
	Temperature float64

	// RequestsPerSecond caps outgoing request rate. Zero disables limiting.
	RequestsPerSecond float64
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service generates chat completions from role-tagged message sequences.
type Service struct {
	llm     *openai.LLM
	config  Config
	limiter *rate.Limiter
}

// NewService creates a completion service for the configured model.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Service{llm: llm, config: config, limiter: limiter}, nil
}

// chatMessageType maps a Role onto langchaingo's message taxonomy.
func chatMessageType(r Role) schema.ChatMessageType {
	switch r {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

// Complete sends the ordered message sequence to the model and returns the
// generated text.
func (s *Service) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyMessages
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(chatMessageType(m.Role), m.Content)
	}

	resp, err := s.llm.GenerateContent(ctx, content, llms.WithTemperature(s.config.Temperature))
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}

	return resp.Choices[0].Content, nil
}
