package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coursecraft/internal/domain"
	"coursecraft/internal/infra/config"
)

// Backoff defaults when the retry config block is absent.
const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// RetryProvider re-issues provider calls that failed transiently (rate
// limits, 5xx responses) with exponential backoff. Permanent failures such
// as invalid credentials return immediately, and the backoff wait respects
// context cancellation. Cross-family model fallback stays in the router;
// this wrapper only absorbs blips on a single backend.
type RetryProvider struct {
	inner  domain.LLMProvider
	cfg    config.RetryConfig
	logger *slog.Logger
}

// NewRetryProvider wraps inner. Zero-valued cfg fields fall back to defaults.
func NewRetryProvider(inner domain.LLMProvider, cfg config.RetryConfig, logger *slog.Logger) *RetryProvider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = defaultRetryMaxDelay
	}
	return &RetryProvider{inner: inner, cfg: cfg, logger: logger}
}

// Chat implements domain.LLMProvider.
func (p *RetryProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
		resp, err := p.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !domain.IsRetryableError(err) {
			return nil, err
		}
		lastErr = err
		p.logger.Warn("transient provider failure",
			"provider", p.inner.Name(), "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("provider %q failed after %d attempts: %w",
		p.inner.Name(), p.cfg.MaxAttempts, lastErr)
}

// ChatStream implements domain.StreamingLLMProvider when the inner provider
// supports it. Only stream initiation is retried; once deltas are flowing an
// interruption surfaces through the channel.
func (p *RetryProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	sp, ok := p.inner.(domain.StreamingLLMProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", p.inner.Name())
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
		ch, err := sp.ChatStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		if !domain.IsRetryableError(err) {
			return nil, err
		}
		lastErr = err
		p.logger.Warn("transient provider failure on stream start",
			"provider", p.inner.Name(), "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("provider %q failed after %d attempts: %w",
		p.inner.Name(), p.cfg.MaxAttempts, lastErr)
}

// Name implements domain.LLMProvider.
func (p *RetryProvider) Name() string { return p.inner.Name() }

// wait sleeps for the backoff delay preceding the given attempt, doubling
// from BaseDelay and capping at MaxDelay.
func (p *RetryProvider) wait(ctx context.Context, attempt int) error {
	delay := p.cfg.BaseDelay << (attempt - 2)
	if delay > p.cfg.MaxDelay || delay <= 0 {
		delay = p.cfg.MaxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface checks.
var (
	_ domain.LLMProvider          = (*RetryProvider)(nil)
	_ domain.StreamingLLMProvider = (*RetryProvider)(nil)
)
