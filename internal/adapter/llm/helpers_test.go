package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coursecraft/internal/domain"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limit", http.StatusTooManyRequests, domain.ErrRateLimit},
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthInvalid},
		{"forbidden", http.StatusForbidden, domain.ErrAuthInvalid},
		{"payload too large", http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{"server error", http.StatusInternalServerError, domain.ErrProviderError},
		{"bad gateway", http.StatusBadGateway, domain.ErrProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, []byte("detail"))
			if !errors.Is(err, tt.want) {
				t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestClassifyStatusUnclassified(t *testing.T) {
	err := classifyStatus(http.StatusBadRequest, []byte("bad"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrRateLimit) || errors.Is(err, domain.ErrProviderError) {
		t.Errorf("400 should not map to a sentinel, got %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("missing header, got %q", r.Header.Get("X-Test"))
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := postJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), map[string]string{"X-Test": "yes"})
	if err != nil {
		t.Fatalf("postJSON: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestPostJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := postJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil)
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("err = %v, want ErrRateLimit", err)
	}
}
