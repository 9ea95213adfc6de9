// Package ai generates workouts and recipes with a chat-completion model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

var (
	// ErrNotConfigured is returned when no API key is set
	ErrNotConfigured = errors.New("ai: OPENAI_API_KEY not configured")
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("ai: empty response from model")
)

// Prompt is one system + user exchange
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer produces a completion for a prompt
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// chatService is the subset of the OpenAI client used here
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI is a Completer backed by the OpenAI chat completions API
type OpenAI struct {
	chat  chatService
	model string
}

// NewOpenAI creates a client for the given key and model
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{chat: &client.Chat.Completions, model: model}, nil
}

// Complete sends the prompt and returns the trimmed first choice
func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
	}
	if p.Temperature > 0 {
		params.Temperature = openai.Float(p.Temperature)
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}

	resp, err := o.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Disabled is a Completer used when no API key is configured
type Disabled struct{}

// Complete always fails with ErrNotConfigured
func (Disabled) Complete(context.Context, Prompt) (string, error) {
	return "", ErrNotConfigured
}
