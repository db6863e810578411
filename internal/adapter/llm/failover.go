package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coursecraft/internal/domain"
)

// Compile-time interface assertions.
var (
	_ domain.LLMProvider          = (*FailoverProvider)(nil)
	_ domain.StreamingLLMProvider = (*FailoverProvider)(nil)
)

// FailoverProvider chains a primary backend with ordered fallback backends.
// When the primary fails a call after its own retry budget, each fallback is
// tried in turn. This is backend-level redundancy under one registry name;
// cross-family model fallback is the router's job.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider builds the chain. The composite keeps the primary's
// name so registry lookups resolve to it transparently.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat implements domain.LLMProvider. Every backend failure is kept so the
// terminal error names each one tried.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	f.logger.Warn("primary backend failed, trying fallbacks",
		"primary", f.primary.Name(), "error", err)

	failures := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}
	for _, fb := range f.fallbacks {
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			f.logger.Info("failover succeeded", "backend", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback backend failed", "backend", fb.Name(), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", fb.Name(), err))
	}

	return nil, fmt.Errorf("all providers failed: [%s]", strings.Join(failures, "; "))
}

// ChatStream implements domain.StreamingLLMProvider. Backends that cannot
// stream are skipped rather than failed.
func (f *FailoverProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	var failures []string

	if sp, ok := f.primary.(domain.StreamingLLMProvider); ok {
		ch, err := sp.ChatStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		f.logger.Warn("primary backend failed to start stream",
			"primary", f.primary.Name(), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", f.primary.Name(), err))
	}

	for _, fb := range f.fallbacks {
		sp, ok := fb.(domain.StreamingLLMProvider)
		if !ok {
			continue
		}
		ch, err := sp.ChatStream(ctx, req)
		if err == nil {
			f.logger.Info("streaming failover succeeded", "backend", fb.Name())
			return ch, nil
		}
		f.logger.Warn("fallback backend failed to start stream", "backend", fb.Name(), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", fb.Name(), err))
	}

	if len(failures) > 0 {
		return nil, fmt.Errorf("all streaming providers failed: [%s]", strings.Join(failures, "; "))
	}
	return nil, fmt.Errorf("no streaming-capable providers available")
}

// Name reports the primary's name: the chain stands in for it in the
// registry.
func (f *FailoverProvider) Name() string {
	return f.primary.Name()
}
