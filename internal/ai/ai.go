// Package ai produces promotional copy and growth coaching through an
// OpenAI-compatible chat completion API.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"promohub/internal/apperror"
)

// MaxHistoryTurns is how many prior turns accompany a prompt.
const MaxHistoryTurns = 10

type Mode string

const (
	ModeCopy  Mode = "copy"
	ModeCoach Mode = "coach"
)

var systemPrompts = map[Mode]string{
	ModeCopy: "You write short, punchy promotional copy for indie makers. " +
		"Answer with the copy only, no preamble.",
	ModeCoach: "You are a pragmatic growth coach for solo founders. " +
		"Give concrete, prioritised next steps in a few short paragraphs.",
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Assistant interface {
	Complete(ctx context.Context, mode Mode, prompt string, history []Turn) (string, error)
}

type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

var _ Assistant = (*OpenAI)(nil)

func NewOpenAI(apiKey, model string, maxTokens int, logger *slog.Logger) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model, maxTokens, logger)
}

// NewOpenAIWithConfig accepts a prepared client config, e.g. another base URL.
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string, maxTokens int, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Complete answers prompt in the given mode. Only the last MaxHistoryTurns
// turns of history are sent; turns with an unknown role are skipped.
func (o *OpenAI) Complete(ctx context.Context, mode Mode, prompt string, history []Turn) (string, error) {
	system, ok := systemPrompts[mode]
	if !ok {
		return "", apperror.ValidationFailed("mode", "unknown assistant mode")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperror.ValidationFailed("prompt", "prompt is required")
	}

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}
	for _, turn := range TrimHistory(history) {
		switch turn.Role {
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperror.Timeout("openai")
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", apperror.Upstream("openai", errors.New(apiErr.Message))
		}
		return "", apperror.Upstream("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperror.Upstream("openai", errors.New("empty completion"))
	}

	o.logger.Debug("[AI] Completion done", "mode", mode, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TrimHistory keeps the newest MaxHistoryTurns turns.
func TrimHistory(history []Turn) []Turn {
	if len(history) <= MaxHistoryTurns {
		return history
	}
	return history[len(history)-MaxHistoryTurns:]
}
