package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/metrics"
)

// Completer executes structured-prompt completions via the chat API.
type Completer struct {
	client   *openai.Client
	model    string
	provider string
	defaults domain.CompletionOptions
	logger   *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider. The config
// MaxTokens/Temperature become defaults for calls that leave them unset.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		defaults: domain.CompletionOptions{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
		logger: cfg.Logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = c.defaults.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = c.defaults.Temperature
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, c.model, "completion", "error").Inc()
		return "", parseAPIError(err, domain.ErrCompletionProviderError, "completion")
	}

	if len(resp.Choices) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, c.model, "completion", "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(c.provider, c.model, "completion", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(c.provider, c.model, "completion").Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.ProviderTokensTotal.
			WithLabelValues(c.provider, c.model, "completion", "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.ProviderTokensTotal.
			WithLabelValues(c.provider, c.model, "completion", "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}
