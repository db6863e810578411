package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"coursecraft/internal/domain"
	"coursecraft/internal/infra/config"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	inner := &stubProvider{name: "flaky", err: errors.New("boom")}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Minute,
	}, slog.Default())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cb.Chat(ctx, domain.ChatRequest{}); err == nil {
			t.Fatal("expected error")
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Chat(ctx, domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("err = %v, want circuit open", err)
	}
}

func TestCircuitBreakerPassesSuccess(t *testing.T) {
	inner := &stubProvider{name: "ok", resp: &domain.ChatResponse{ID: "r"}}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, slog.Default())

	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.ID != "r" {
		t.Errorf("resp.ID = %q", resp.ID)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerStreamUnsupported(t *testing.T) {
	cb := NewCircuitBreakerProvider(&stubProvider{name: "nostream"}, config.CircuitBreakerConfig{}, slog.Default())
	_, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "does not support streaming") {
		t.Errorf("err = %v", err)
	}
}
