package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelCompleter can run the same prompt against a named model.
type ModelCompleter interface {
	CompleteWith(ctx context.Context, model, prompt string) (string, error)
}

// OpenAICompleter talks to any OpenAI-compatible chat completions endpoint,
// including a local Ollama server at http://localhost:11434/v1.
type OpenAICompleter struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewOpenAICompleter creates a completer for model. An empty baseURL targets the
// public OpenAI API. Ollama ignores the key but the client requires one.
func NewOpenAICompleter(baseURL, apiKey, model string, log *zap.Logger) *OpenAICompleter {
	if log == nil {
		log = zap.NewNop()
	}
	if apiKey == "" {
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	log.Info("Text completion client initialized", zap.String("base_url", cfg.BaseURL), zap.String("model", model))
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

// Complete sends prompt to the configured model.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWith(ctx, c.model, prompt)
}

// CompleteWith sends prompt as a single user message to model.
func (c *OpenAICompleter) CompleteWith(ctx context.Context, model, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with %s failed: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion with %s returned no choices", model)
	}

	content := resp.Choices[0].Message.Content
	c.log.Debug("Chat completion",
		zap.String("model", model),
		zap.Int("prompt_length", len(prompt)),
		zap.Int("response_length", len(content)),
		zap.Int("tokens_used", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return content, nil
}
