// Package anthropic implements the LLM client port using the official
// Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/domain"
)

// Client is an Anthropic Claude provider client
type Client struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a new Anthropic client
func NewClient(apiKey, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}, nil
}

// Name returns the provider label recorded on produced entities
func (c *Client) Name() string {
	return c.model
}

// Complete sends a rendered prompt to the Messages API
func (c *Client) Complete(ctx context.Context, prompt domain.Rendered) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: anthropic.Float(prompt.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	if text == "" {
		return "", domain.NewTransientError(c.model, fmt.Errorf("empty response"))
	}

	return text, nil
}

// classify maps SDK errors onto the provider error taxonomy. Rate limits
// and server-side failures are retryable; auth and request errors are not.
func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return domain.NewTransientError(c.model, err)
		default:
			return domain.NewPermanentError(c.model, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransientError(c.model, err)
	}

	// Network-level failures without an API status are treated as transient
	return domain.NewTransientError(c.model, err)
}
