package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/ai/prompt"
)

const (
	defaultModel = "claude-haiku-4-5-20251001"
	maxTokens    = 1024
	platformName = "claude"
)

// Client answers prompts with Claude via the official SDK.
type Client struct {
	client sdk.Client
	model  string
}

// NewClient creates a Claude responder. baseURL is only used by tests.
func NewClient(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{client: sdk.NewClient(opts...), model: model}
}

// Platform implements ai.Responder.
func (c *Client) Platform() string { return platformName }

// Answer implements ai.Responder.
func (c *Client) Answer(ctx context.Context, question string) (ai.Answer, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		System:    []sdk.TextBlockParam{{Text: prompt.AnswerSystemPrompt()}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(question))},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return ai.Answer{}, eris.Wrap(ai.ErrQuotaExceeded, apiErr.Error())
		}
		return ai.Answer{}, eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return ai.Answer{}, ai.ErrEmptyCompletion
	}
	zap.L().Debug("anthropic completion",
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return ai.Answer{Text: b.String(), Model: string(msg.Model), Platform: platformName}, nil
}
