package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrCompletion indicates the completion service call failed or returned an
// empty response. Calls are attempted once; any retry/backoff behavior belongs
// to the underlying client.
var ErrCompletion = errors.New("completion failed")

const defaultCompletionTimeout = 30 * time.Second

// LLM is the delegation boundary for the text-completion service: prompt in,
// text out. Implementations must wrap failures in ErrCompletion.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAI calls the OpenAI chat completions API. The API key is read from the
// environment by the client library.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
	temp      float64
}

var _ LLM = (*OpenAI)(nil)

func NewOpenAI(model string, maxTokens int64, temp float64, opts ...option.RequestOption) *OpenAI {
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		temp:      temp,
	}
}

func (o *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCompletionTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if len(systemPrompt) > 0 {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	chatOpts := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	}
	if o.maxTokens > 0 {
		chatOpts.MaxTokens = openai.Int(o.maxTokens)
	}

	res, err := o.client.Chat.Completions.New(ctx, chatOpts)
	if err != nil {
		slog.Error("openai error: chat completions failed", "model", o.model, "error", err)
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response from model %s", ErrCompletion, o.model)
	}

	return res.Choices[0].Message.Content, nil
}
