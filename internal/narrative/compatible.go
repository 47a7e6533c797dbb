package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
)

// CompatibleClient talks to any hosted endpoint implementing the OpenAI
// chat-completions wire format (/v1/chat/completions). It exists so the
// provider can be swapped through configuration alone.
type CompatibleClient struct {
	client    *resty.Client
	model     string
	maxTokens int64
	temp      float64
}

var _ LLM = (*CompatibleClient)(nil)

func NewCompatibleClient(baseURL, apiKey, model string, maxTokens int64, temp float64) *CompatibleClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(defaultCompletionTimeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &CompatibleClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		temp:      temp,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *CompatibleClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if len(systemPrompt) > 0 {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	var result chatResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temp,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/chat/completions")
	if err != nil {
		slog.Error("completion request failed", "model", c.model, "error", err)
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	if res.IsError() {
		msg := res.Status()
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("%w: %s", ErrCompletion, msg)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response from model %s", ErrCompletion, c.model)
	}

	return result.Choices[0].Message.Content, nil
}
