// Package gateway wraps the remote text-generation providers behind a
// uniform call contract with per-provider call pacing, bounded retry with
// exponential backoff, and fallback substitution for the critic-2 role.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
)

// RetryConfig holds the retry budget for transient provider errors
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry budget
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Provider pairs a client with the pacer shared by every call site that
// targets the same remote provider.
type Provider struct {
	Client ports.LLMClient
	Pacer  *Pacer
}

type endpoint struct {
	primary  Provider
	fallback *Provider
}

// Gateway implements ports.TextGateway
type Gateway struct {
	roles   map[domain.Role]endpoint
	retry   RetryConfig
	timeout time.Duration
	logger  *zap.Logger
	metrics ports.MetricsCollector
}

// New creates a gateway. timeout bounds each individual provider attempt;
// zero disables the per-attempt bound.
func New(retry RetryConfig, timeout time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *Gateway {
	return &Gateway{
		roles:   make(map[domain.Role]endpoint),
		retry:   retry,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Register binds a role to its primary provider.
func (g *Gateway) Register(role domain.Role, primary Provider) {
	g.roles[role] = endpoint{primary: primary}
}

// RegisterWithFallback binds a role to a primary provider and a secondary
// provider substituted when the primary is unavailable.
func (g *Gateway) RegisterWithFallback(role domain.Role, primary, fallback Provider) {
	g.roles[role] = endpoint{primary: primary, fallback: &fallback}
}

// Invoke calls the provider registered for role with pacing and retries
// applied. When the primary exhausts its budget or fails permanently and a
// fallback is registered, the same prompt is retried against the fallback
// and the completion carries the fallback's provider label; callers only
// see an error when every configured provider failed.
func (g *Gateway) Invoke(ctx context.Context, role domain.Role, prompt domain.Prompt) (ports.Completion, error) {
	ep, ok := g.roles[role]
	if !ok {
		return ports.Completion{}, fmt.Errorf("no provider registered for role %q", role)
	}

	rendered, err := prompt.Render()
	if err != nil {
		return ports.Completion{}, domain.NewPermanentError(ep.primary.Client.Name(), err)
	}

	comp, err := g.callWithRetry(ctx, role, ep.primary, rendered)
	if err == nil {
		return comp, nil
	}

	if ep.fallback == nil {
		return ports.Completion{}, err
	}

	g.logger.Warn("substituting fallback provider",
		zap.String("role", string(role)),
		zap.String("primary", ep.primary.Client.Name()),
		zap.String("fallback", ep.fallback.Client.Name()),
		zap.Error(err))

	return g.callWithRetry(ctx, role, *ep.fallback, rendered)
}

// callWithRetry runs the pace-then-call sequence with exponential backoff
// on transient errors. Permanent errors fail immediately.
func (g *Gateway) callWithRetry(ctx context.Context, role domain.Role, p Provider, rendered domain.Rendered) (ports.Completion, error) {
	name := p.Client.Name()
	backoff := g.retry.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if err := p.Pacer.Wait(ctx); err != nil {
			return ports.Completion{}, domain.NewTransientError(name, fmt.Errorf("pacing wait: %w", err))
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}

		start := time.Now()
		text, err := p.Client.Complete(callCtx, rendered)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		g.metrics.ObserveLLMLatency(name, latency)

		if err == nil {
			g.metrics.IncLLMCalls(name, string(role), "success")
			return ports.Completion{Text: text, Provider: name, Latency: latency}, nil
		}

		g.metrics.IncLLMCalls(name, string(role), "error")
		lastErr = err

		if !domain.IsTransient(err) {
			g.logger.Error("permanent provider error",
				zap.String("provider", name),
				zap.String("role", string(role)),
				zap.Error(err))
			return ports.Completion{}, err
		}

		if attempt == g.retry.MaxRetries {
			break
		}

		g.logger.Warn("transient provider error, retrying",
			zap.String("provider", name),
			zap.String("role", string(role)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if err := sleepContext(ctx, backoff); err != nil {
			return ports.Completion{}, domain.NewTransientError(name, err)
		}

		backoff = time.Duration(float64(backoff) * g.retry.BackoffMultiplier)
		if backoff > g.retry.MaxBackoff {
			backoff = g.retry.MaxBackoff
		}
	}

	return ports.Completion{}, fmt.Errorf("retry budget exhausted for %s: %w", name, lastErr)
}
