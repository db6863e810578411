package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"coursecraft/internal/domain"
)

func collectDeltas(ch <-chan domain.StreamDelta) []domain.StreamDelta {
	var out []domain.StreamDelta
	for d := range ch {
		out = append(out, d)
	}
	return out
}

func jsonLineParser(data []byte) (*domain.StreamDelta, error) {
	var d domain.StreamDelta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func TestDecodeSSE(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"data: {\"content\":\"Hello\"}\n\n" +
			": comment line\n" +
			"data: {\"content\":\" world\"}\n\n" +
			"data: [DONE]\n",
	))

	deltas := collectDeltas(decodeSSE(context.Background(), body, jsonLineParser))

	if len(deltas) != 3 {
		t.Fatalf("got %d deltas, want 3: %+v", len(deltas), deltas)
	}
	if deltas[0].Content != "Hello" || deltas[1].Content != " world" {
		t.Errorf("content = %q, %q", deltas[0].Content, deltas[1].Content)
	}
	if !deltas[2].Done {
		t.Error("final delta should be Done")
	}
}

func TestDecodeSSESkipsUnparseable(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"data: not json\n" +
			"data: {\"content\":\"ok\",\"done\":true}\n",
	))

	deltas := collectDeltas(decodeSSE(context.Background(), body, jsonLineParser))

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	if deltas[0].Content != "ok" || !deltas[0].Done {
		t.Errorf("delta = %+v", deltas[0])
	}
}

func TestDecodeSSEContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := io.NopCloser(strings.NewReader("data: {\"content\":\"x\"}\n"))
	ch := decodeSSE(ctx, body, jsonLineParser)

	// Channel must close without hanging.
	for range ch {
	}
}
