package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/ai/prompt"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4o-mini"
	platformName = "chatgpt"
)

type Client struct {
	*openai.Client
	Model          string
	MaxCategories  int
	MaxCompetitors int
}

// NewClient builds a client; baseURL is optional and only overridden when set.
func NewClient(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, MaxCategories: 5, MaxCompetitors: 5}
}

func (c *Client) model() string {
	if c.Model == "" {
		return defaultModel
	}
	return c.Model
}

func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	model := c.model()
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ai.ErrEmptyCompletion
	}
	zap.L().Debug("openai completion",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return eris.Wrap(ai.ErrQuotaExceeded, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return eris.Wrap(ai.ErrQuotaExceeded, reqErr.Error())
	}
	return eris.Wrap(err, "openai: create chat completion")
}

// DescribeBrand implements ai.Analyst.
func (c *Client) DescribeBrand(ctx context.Context, domain, brandHint string) (ai.BrandProfile, error) {
	out, err := c.complete(ctx, prompt.BrandSystemPrompt(), prompt.BrandUserPrompt(domain, brandHint), true)
	if err != nil {
		return ai.BrandProfile{}, err
	}
	var p ai.BrandProfile
	if err := prompt.DecodeJSON(out, &p); err != nil {
		return ai.BrandProfile{}, err
	}
	if strings.TrimSpace(brandHint) != "" {
		p.BrandName = strings.TrimSpace(brandHint)
	}
	return p, nil
}

// DiscoverLandscape implements ai.Analyst.
func (c *Client) DiscoverLandscape(ctx context.Context, domain string, profile ai.BrandProfile) (ai.Landscape, error) {
	out, err := c.complete(ctx,
		prompt.LandscapeSystemPrompt(c.MaxCategories, c.MaxCompetitors),
		prompt.LandscapeUserPrompt(domain, profile.BrandName, profile.Description, profile.Industry),
		true,
	)
	if err != nil {
		return ai.Landscape{}, err
	}
	var l ai.Landscape
	if err := prompt.DecodeJSON(out, &l); err != nil {
		return ai.Landscape{}, err
	}
	l.Categories = capList(prompt.Dedupe(l.Categories), c.MaxCategories)
	l.Competitors = capList(prompt.Dedupe(l.Competitors, profile.BrandName), c.MaxCompetitors)
	return l, nil
}

// GeneratePrompts implements ai.Analyst.
func (c *Client) GeneratePrompts(ctx context.Context, profile ai.BrandProfile, categories []string, perCategory int) ([]ai.GeneratedPrompt, error) {
	out, err := c.complete(ctx,
		prompt.PromptsSystemPrompt(perCategory),
		prompt.PromptsUserPrompt(profile.BrandName, profile.Industry, categories),
		true,
	)
	if err != nil {
		return nil, err
	}
	var body struct {
		Prompts []ai.GeneratedPrompt `json:"prompts"`
	}
	if err := prompt.DecodeJSON(out, &body); err != nil {
		return nil, err
	}
	return body.Prompts, nil
}

// Platform implements ai.Responder.
func (c *Client) Platform() string { return platformName }

// Answer implements ai.Responder.
func (c *Client) Answer(ctx context.Context, question string) (ai.Answer, error) {
	out, err := c.complete(ctx, prompt.AnswerSystemPrompt(), question, false)
	if err != nil {
		return ai.Answer{}, err
	}
	return ai.Answer{Text: out, Model: c.model(), Platform: platformName}, nil
}

func capList(items []string, n int) []string {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
