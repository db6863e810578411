package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"coursecraft/internal/domain"
)

type stubProvider struct {
	name string
	resp *domain.ChatResponse
	err  error
}

func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) Name() string { return s.name }

func TestFailoverPrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "a", resp: &domain.ChatResponse{ID: "1"}}
	fallback := &stubProvider{name: "b", err: errors.New("should not be called")}

	f := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, slog.Default())
	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.ID != "1" {
		t.Errorf("resp.ID = %q, want 1", resp.ID)
	}
}

func TestFailoverUsesFallback(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("down")}
	fallback := &stubProvider{name: "b", resp: &domain.ChatResponse{ID: "2"}}

	f := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, slog.Default())
	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.ID != "2" {
		t.Errorf("resp.ID = %q, want 2", resp.ID)
	}
}

func TestFailoverAllFailAggregatesErrors(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("err-a")}
	fb1 := &stubProvider{name: "b", err: errors.New("err-b")}
	fb2 := &stubProvider{name: "c", err: errors.New("err-c")}

	f := NewFailoverProvider(primary, []domain.LLMProvider{fb1, fb2}, slog.Default())
	_, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"all providers failed", "a: err-a", "b: err-b", "c: err-c"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestFailoverKeepsPrimaryName(t *testing.T) {
	f := NewFailoverProvider(&stubProvider{name: "a"}, nil, slog.Default())
	if f.Name() != "a" {
		t.Errorf("Name() = %q, want primary name for registry lookups", f.Name())
	}
}
