package ai

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/kayz/weave/internal/config"
	"github.com/kayz/weave/internal/promptgen"
)

// Client submits rendered messages to a model provider.
type Client struct {
	cfg config.AIConfig
}

// NewClient builds a submit client from config.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	switch cfg.Provider {
	case "openai", "anthropic":
	case "":
		return nil, fmt.Errorf("provider is required")
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &Client{cfg: cfg}, nil
}

// Submit sends the messages and returns the model's text reply.
func (c *Client) Submit(ctx context.Context, msgs []promptgen.Message) (string, error) {
	if c.cfg.Provider == "anthropic" {
		return c.submitAnthropic(ctx, msgs)
	}
	return c.submitOpenAI(ctx, msgs)
}

func (c *Client) submitOpenAI(ctx context.Context, msgs []promptgen.Message) (string, error) {
	clientConfig := openai.DefaultConfig(c.cfg.APIKey)
	if c.cfg.BaseURL != "" {
		clientConfig.BaseURL = c.cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  ToOpenAI(msgs),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) submitAnthropic(ctx context.Context, msgs []promptgen.Message) (string, error) {
	opts := []anthropic.ClientOption{}
	if c.cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(c.cfg.BaseURL))
	}
	client := anthropic.NewClient(c.cfg.APIKey, opts...)

	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system, turns := ToAnthropic(msgs)
	resp, err := client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.cfg.Model),
		System:    system,
		Messages:  turns,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	return resp.GetFirstContentText(), nil
}
