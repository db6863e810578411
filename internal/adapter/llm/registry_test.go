package llm

import (
	"log/slog"
	"strings"
	"testing"

	"coursecraft/internal/infra/config"
)

func twoProviderConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider: "anthropic",
		Providers: []config.ProviderConfig{
			{Name: "anthropic", Type: "anthropic", APIKey: "k1"},
			{Name: "openai", Type: "openai", APIKey: "k2"},
		},
	}
}

func TestBuildRegistryResolvesByConfigName(t *testing.T) {
	reg, err := BuildRegistry(twoProviderConfig(), slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	for _, name := range []string{"anthropic", "openai"} {
		p, err := reg.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
		if _, ok := p.(*RetryProvider); !ok {
			t.Errorf("%s: provider %T not wrapped with retry", name, p)
		}
	}
}

func TestBuildRegistryWiresFailoverChain(t *testing.T) {
	cfg := twoProviderConfig()
	cfg.Failover = config.FailoverConfig{Enabled: true, Fallbacks: []string{"openai"}}

	reg, err := BuildRegistry(cfg, slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	p, err := reg.Get("anthropic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	chain, ok := p.(*FailoverProvider)
	if !ok {
		t.Fatalf("default provider is %T, want failover chain", p)
	}
	if chain.Name() != "anthropic" {
		t.Errorf("chain name = %q", chain.Name())
	}
	if len(chain.fallbacks) != 1 {
		t.Errorf("fallbacks = %d, want 1", len(chain.fallbacks))
	}

	// Non-default providers stay unchained.
	p, err = reg.Get("openai")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := p.(*FailoverProvider); ok {
		t.Error("non-default provider should not be a failover chain")
	}
}

func TestBuildRegistryFailoverUnknownFallback(t *testing.T) {
	cfg := twoProviderConfig()
	cfg.Failover = config.FailoverConfig{Enabled: true, Fallbacks: []string{"gemini"}}

	_, err := BuildRegistry(cfg, slog.Default())
	if err == nil || !strings.Contains(err.Error(), "gemini") {
		t.Errorf("err = %v, want unknown fallback error", err)
	}
}

func TestBuildRegistryCircuitBreakerOutermost(t *testing.T) {
	cfg := twoProviderConfig()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, MaxFailures: 3}

	reg, err := BuildRegistry(cfg, slog.Default())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	p, err := reg.Get("anthropic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := p.(*CircuitBreakerProvider); !ok {
		t.Errorf("provider is %T, want circuit breaker wrapper", p)
	}
}

func TestBuildRegistryUnknownType(t *testing.T) {
	cfg := config.LLMConfig{Providers: []config.ProviderConfig{{Name: "x", Type: "mystery"}}}
	if _, err := BuildRegistry(cfg, slog.Default()); err == nil {
		t.Error("expected error for unknown provider type")
	}
}
