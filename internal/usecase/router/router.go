// Package router selects models, executes LLM calls with caching and
// fallback, and repairs structured output.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"coursecraft/internal/domain"
	"coursecraft/internal/infra/tracer"
)

// ProviderResolver resolves a provider family name to a provider.
// *llm.Registry satisfies this.
type ProviderResolver interface {
	Get(name string) (domain.LLMProvider, error)
}

// Config holds router tunables.
type Config struct {
	DefaultModel   string
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
	RatePerSecond  float64 // 0 disables rate limiting
	RateBurst      int
	CacheTTL       time.Duration
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	SystemPrompt string
	Prompt       string
	Capabilities []string // used by SelectModel when Model is empty
	Tier         string
	Model        string // explicit model override
	MaxTokens    int
	Temperature  float64 // 0 means the configured default
	NoCache      bool    // bypass the response cache for this call
}

// GenerateResult is the outcome of a generation call.
type GenerateResult struct {
	Text     string
	Model    string
	Usage    domain.Usage
	Cached   bool
	Fallback bool
}

// Router routes generation requests to providers. Non-streaming calls go
// through the response cache; every provider call gets at most one fallback
// to the other provider family.
type Router struct {
	providers ProviderResolver
	cache     domain.ResponseCache
	store     domain.RunStore
	bus       domain.EventBus
	limiter   *rate.Limiter
	logger    *slog.Logger
	cfg       Config

	metrics Metrics
}

// Metrics accumulates router counters. Snapshot returns a copy.
type Metrics struct {
	mu            sync.Mutex
	Requests      int64
	Errors        int64
	Fallbacks     int64
	CacheHits     int64
	TokensByModel map[string]int
	CostUSD       float64
}

// Option configures optional router collaborators.
type Option func(*Router)

// WithCache attaches a response cache.
func WithCache(c domain.ResponseCache) Option { return func(r *Router) { r.cache = c } }

// WithStore attaches a run store for call-record audit.
func WithStore(s domain.RunStore) Option { return func(r *Router) { r.store = s } }

// WithEventBus attaches an event bus for call observability.
func WithEventBus(b domain.EventBus) Option { return func(r *Router) { r.bus = b } }

// New creates a Router.
func New(providers ProviderResolver, cfg Config, logger *slog.Logger, opts ...Option) *Router {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	r := &Router{
		providers: providers,
		logger:    logger,
		cfg:       cfg,
	}
	r.metrics.TokensByModel = make(map[string]int)

	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate executes a non-streaming generation call. Identical requests hit
// the cache; a failed call is retried once against the other provider family.
func (r *Router) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = SelectModel(req.Capabilities, req.Tier, r.cfg.DefaultModel)
	}

	ctx, span := tracer.StartSpan(ctx, "router.generate",
		trace.WithAttributes(tracer.StringAttr("llm.model", model)),
	)
	defer span.End()

	r.metrics.mu.Lock()
	r.metrics.Requests++
	r.metrics.mu.Unlock()

	key := cacheKey(req.SystemPrompt, req.Prompt, model)
	if r.cache != nil && !req.NoCache {
		if text, ok := r.cache.Get(ctx, key); ok {
			r.metrics.mu.Lock()
			r.metrics.CacheHits++
			r.metrics.mu.Unlock()
			r.publish(ctx, domain.EventCacheHit, map[string]string{"model": model})
			tracer.SetOK(span)
			return &GenerateResult{Text: text, Model: model, Cached: true}, nil
		}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			tracer.RecordError(span, err)
			return nil, domain.WrapOp("router.Generate", err)
		}
	}

	r.publish(ctx, domain.EventLLMCallStarted, map[string]string{"model": model})

	result, err := r.callOnce(ctx, model, req)
	if err != nil {
		fbModel := FallbackFor(model)
		if fbModel == "" {
			r.recordFailure(ctx, model, req, err)
			tracer.RecordError(span, err)
			return nil, err
		}

		r.logger.Warn("model call failed, trying fallback",
			"model", model, "fallback", fbModel, "error", err)
		r.publish(ctx, domain.EventLLMFallback, map[string]string{"from": model, "to": fbModel})

		fbResult, fbErr := r.callOnce(ctx, fbModel, req)
		if fbErr != nil {
			r.recordFailure(ctx, fbModel, req, fbErr)
			tracer.RecordError(span, fbErr)
			return nil, fmt.Errorf("all providers failed: [%s: %v; %s: %v]", model, err, fbModel, fbErr)
		}

		r.metrics.mu.Lock()
		r.metrics.Fallbacks++
		r.metrics.mu.Unlock()

		fbResult.Fallback = true
		r.finish(ctx, key, req, fbResult)
		tracer.SetOK(span)
		return fbResult, nil
	}

	r.finish(ctx, key, req, result)
	tracer.SetOK(span)
	return result, nil
}

// GenerateStream executes a streaming call. The cache is bypassed. When the
// selected model fails to start a stream, the fallback result arrives as a
// single non-streamed chunk followed by a Done delta.
func (r *Router) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan domain.StreamDelta, string, error) {
	model := req.Model
	if model == "" {
		model = SelectModel(req.Capabilities, req.Tier, r.cfg.DefaultModel)
	}

	r.metrics.mu.Lock()
	r.metrics.Requests++
	r.metrics.mu.Unlock()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, model, domain.WrapOp("router.GenerateStream", err)
		}
	}

	provider, chatReq, err := r.prepare(model, req)
	if err != nil {
		return nil, model, err
	}

	if sp, ok := provider.(domain.StreamingLLMProvider); ok {
		ch, streamErr := sp.ChatStream(ctx, chatReq)
		if streamErr == nil {
			return ch, model, nil
		}
		r.logger.Warn("streaming call failed, falling back to single-chunk",
			"model", model, "error", streamErr)
	}

	fbModel := FallbackFor(model)
	if fbModel == "" {
		fbModel = model
	} else {
		r.publish(ctx, domain.EventLLMFallback, map[string]string{"from": model, "to": fbModel})
	}

	result, err := r.callOnce(ctx, fbModel, req)
	if err != nil {
		r.metrics.mu.Lock()
		r.metrics.Errors++
		r.metrics.mu.Unlock()
		return nil, fbModel, err
	}

	r.metrics.mu.Lock()
	r.metrics.Fallbacks++
	r.metrics.mu.Unlock()

	ch := make(chan domain.StreamDelta, 2)
	ch <- domain.StreamDelta{Content: result.Text}
	ch <- domain.StreamDelta{Done: true, Usage: &result.Usage}
	close(ch)
	return ch, fbModel, nil
}

// prepare resolves the provider for a model and builds the chat request.
func (r *Router) prepare(model string, req GenerateRequest) (domain.LLMProvider, domain.ChatRequest, error) {
	spec, ok := Spec(model)
	if !ok {
		return nil, domain.ChatRequest{}, domain.NewDomainError("router.prepare", domain.ErrNotFound, "unknown model "+model)
	}

	provider, err := r.providers.Get(spec.Family)
	if err != nil {
		return nil, domain.ChatRequest{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = r.cfg.Temperature
	}

	var msgs []domain.ChatMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: req.Prompt})

	return provider, domain.ChatRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, nil
}

// callOnce performs a single provider call with timeout and audit record.
func (r *Router) callOnce(ctx context.Context, model string, req GenerateRequest) (*GenerateResult, error) {
	provider, chatReq, err := r.prepare(model, req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	resp, err := provider.Chat(callCtx, chatReq)
	latency := time.Since(started)
	if err != nil {
		return nil, err
	}

	usage := resp.Usage
	if usage.TotalTokens == 0 {
		usage = r.estimateUsage(req.SystemPrompt+req.Prompt, resp.Message.Content)
	}

	rec := domain.ModelCallRecord{
		ID:           ulid.Make().String(),
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  chatReq.Temperature,
		StartedAt:    started,
		FinishedAt:   started.Add(latency),
		Response:     resp.Message.Content,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		LatencyMS:    float64(latency.Milliseconds()),
		Success:      true,
		CostUSD:      CostUSD(model, usage.TotalTokens),
	}
	r.saveRecord(ctx, rec)

	r.publish(ctx, domain.EventLLMCallCompleted, map[string]any{
		"model":      model,
		"tokens":     usage.TotalTokens,
		"latency_ms": rec.LatencyMS,
	})

	return &GenerateResult{
		Text:  resp.Message.Content,
		Model: model,
		Usage: usage,
	}, nil
}

// finish applies post-call bookkeeping shared by primary and fallback paths.
func (r *Router) finish(ctx context.Context, key string, req GenerateRequest, result *GenerateResult) {
	r.metrics.mu.Lock()
	r.metrics.TokensByModel[result.Model] += result.Usage.TotalTokens
	r.metrics.CostUSD += CostUSD(result.Model, result.Usage.TotalTokens)
	r.metrics.mu.Unlock()

	if r.cache != nil && !req.NoCache {
		r.cache.Set(ctx, key, result.Text, r.cfg.CacheTTL)
	}
}

func (r *Router) recordFailure(ctx context.Context, model string, req GenerateRequest, callErr error) {
	r.metrics.mu.Lock()
	r.metrics.Errors++
	r.metrics.mu.Unlock()

	r.saveRecord(ctx, domain.ModelCallRecord{
		ID:           ulid.Make().String(),
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		StartedAt:    time.Now(),
		FinishedAt:   time.Now(),
		Success:      false,
		Error:        callErr.Error(),
	})
}

func (r *Router) saveRecord(ctx context.Context, rec domain.ModelCallRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveCallRecord(ctx, rec); err != nil {
		r.logger.Warn("save call record failed", "error", err)
	}
}

func (r *Router) publish(ctx context.Context, typ domain.EventType, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.PublishJSON(ctx, typ, "", payload)
}

// estimateUsage approximates token counts when a provider omits usage data.
func (r *Router) estimateUsage(prompt, completion string) domain.Usage {
	in := estimateTokens(prompt)
	out := estimateTokens(completion)
	return domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

func estimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Rough heuristic when the encoding tables are unavailable.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Snapshot returns a copy of the current metrics.
func (r *Router) Snapshot() map[string]any {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	tokens := make(map[string]int, len(r.metrics.TokensByModel))
	for k, v := range r.metrics.TokensByModel {
		tokens[k] = v
	}
	return map[string]any{
		"requests":        r.metrics.Requests,
		"errors":          r.metrics.Errors,
		"fallbacks":       r.metrics.Fallbacks,
		"cache_hits":      r.metrics.CacheHits,
		"tokens_by_model": tokens,
		"cost_usd":        r.metrics.CostUSD,
	}
}

// cacheKey derives the cache key for a generation request: a SHA-256 digest
// of the system prompt and prompt, suffixed with the model so different
// models never share entries.
func cacheKey(systemPrompt, prompt, model string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\n\n" + prompt))
	return hex.EncodeToString(sum[:]) + ":" + model
}
