package llm

import (
	"fmt"
	"log/slog"
	"sync"

	"coursecraft/internal/domain"
	"coursecraft/internal/infra/config"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// BuildRegistry constructs providers from config and registers them. Each
// backend is wrapped with a transient-failure retry layer and, when enabled,
// a circuit breaker; the default provider additionally gains same-registry
// failover when cfg.Failover is enabled. Provider types map to constructors;
// unknown types are an error so typos fail at startup.
func BuildRegistry(cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	built := make(map[string]domain.LLMProvider, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		var (
			provider domain.LLMProvider
			err      error
		)
		switch pc.Type {
		case "openai":
			provider = NewOpenAIProvider(pc, logger)
		case "anthropic":
			provider = NewAnthropicProvider(pc, logger)
		case "bedrock":
			provider, err = NewBedrockProvider(pc, logger)
			if err != nil {
				return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
			}
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", pc.Name, pc.Type)
		}

		provider = NewRetryProvider(provider, cfg.Retry, logger)
		if cfg.CircuitBreaker.Enabled {
			provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
		}
		built[pc.Name] = provider
	}

	if cfg.Failover.Enabled {
		primary, ok := built[cfg.DefaultProvider]
		if !ok {
			return nil, fmt.Errorf("failover: default provider %q not configured", cfg.DefaultProvider)
		}
		fallbacks := make([]domain.LLMProvider, 0, len(cfg.Failover.Fallbacks))
		for _, name := range cfg.Failover.Fallbacks {
			if name == cfg.DefaultProvider {
				continue
			}
			fb, ok := built[name]
			if !ok {
				return nil, fmt.Errorf("failover: fallback %q not configured", name)
			}
			fallbacks = append(fallbacks, fb)
		}
		built[cfg.DefaultProvider] = NewFailoverProvider(primary, fallbacks, logger)
	}

	for _, provider := range built {
		if err := reg.Register(provider); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
