// Package ports defines the capability interfaces consumed by the
// application layer. Adapters under pkg/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/refinery/internal/domain"
)

// Completion is the result of one gateway invocation.
type Completion struct {
	Text     string
	Provider string
	Latency  time.Duration
}

// LLMClient is a single remote text-generation provider.
type LLMClient interface {
	// Complete sends a rendered prompt and returns the raw response text.
	// Failures are reported as *domain.ProviderError.
	Complete(ctx context.Context, prompt domain.Rendered) (string, error)

	// Name returns the provider label recorded on produced entities,
	// e.g. "gpt-4o" or "claude-3-5-sonnet-20241022".
	Name() string
}

// TextGateway invokes a pipeline role with rate limiting, retries and
// fallback substitution applied.
type TextGateway interface {
	Invoke(ctx context.Context, role domain.Role, prompt domain.Prompt) (Completion, error)
}

// Kind namespaces entities in the keyed store.
type Kind string

const (
	KindRequest Kind = "request"
	KindSession Kind = "session"
	KindCode    Kind = "code"
	KindReview  Kind = "review"
	KindRanking Kind = "ranking"
)

// KeyedStore is a generic keyed store with per-write expiry. Get returns
// domain.ErrNotFound (possibly wrapped) when the key does not exist.
type KeyedStore interface {
	Put(ctx context.Context, kind Kind, id string, v interface{}) error
	Get(ctx context.Context, kind Kind, id string, out interface{}) error
	Exists(ctx context.Context, kind Kind, id string) (bool, error)
}

// EventHandler processes one session lifecycle event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes session lifecycle events to interested subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
}

// MetricsCollector records operational metrics for the pipeline.
type MetricsCollector interface {
	IncSessionsStarted()
	IncSessionsFinished(status string)
	IncIterations()
	IncLLMCalls(provider, role, status string)
	ObserveLLMLatency(provider string, d time.Duration)
	IncRankingFailures()
	ObserveSessionDuration(d time.Duration)
}

// NopMetrics is a MetricsCollector that records nothing.
type NopMetrics struct{}

func (NopMetrics) IncSessionsStarted()                     {}
func (NopMetrics) IncSessionsFinished(string)              {}
func (NopMetrics) IncIterations()                          {}
func (NopMetrics) IncLLMCalls(string, string, string)      {}
func (NopMetrics) ObserveLLMLatency(string, time.Duration) {}
func (NopMetrics) IncRankingFailures()                     {}
func (NopMetrics) ObserveSessionDuration(time.Duration)    {}
