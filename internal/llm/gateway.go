package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keygate/keygate/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}

	return g
}

func (g *gateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := g.completeWithRetry(ctx, g.defaultProvider, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != g.defaultProvider {
		slog.Warn("primary provider failed, trying fallback",
			"primary", g.defaultProvider,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.completeWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) completeWithRetry(ctx context.Context, providerName string, req CompletionRequest) (string, error) {
	p, ok := g.providers[providerName]
	if !ok {
		return "", fmt.Errorf("provider %q not configured", providerName)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}
