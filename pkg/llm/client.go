package llm

import (
	"context"
	"github.com/sashabaranov/go-openai"
	"strings"
	"time"
	"worker-evaluation/pkg/provider"
)

const providerName = "llm"

// ChatCompleter sends one system+user exchange and returns the raw assistant text.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient talks to any OpenAI compatible chat endpoint (OpenRouter by default).
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", provider.Wrap(ctx, providerName, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.NewError(providerName, provider.CodeInvalidOutput, "response has no choices", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

// NotConfigured is used when no API key is set; every call fails fast.
type NotConfigured struct{}

func (NotConfigured) Complete(context.Context, string, string) (string, error) {
	return "", provider.NewError(providerName, provider.CodeNotConfigured, "llm.api_key is not set", nil)
}
