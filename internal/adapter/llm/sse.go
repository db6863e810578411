package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"coursecraft/internal/domain"
)

var (
	ssePrefix = []byte("data: ")
	sseDone   = []byte("[DONE]")
)

// decodeSSE converts an SSE response body into a delta channel. Each "data:"
// payload goes through the provider-specific decode function; payloads it
// cannot decode are dropped. The channel closes after a [DONE] marker, a
// Done delta, the end of the body, or ctx cancellation. A body that ends
// mid-stream yields a final Done delta so consumers see the termination.
func decodeSSE(ctx context.Context, body io.ReadCloser, decode func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	out := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(out)
		defer body.Close()

		r := bufio.NewReader(body)
		for {
			if ctx.Err() != nil {
				return
			}
			line, readErr := r.ReadBytes('\n')
			line = bytes.TrimRight(line, "\r\n")

			// SSE comments start with ':'; everything except data lines
			// is protocol noise for our purposes.
			if len(line) > 0 && line[0] != ':' && bytes.HasPrefix(line, ssePrefix) {
				data := line[len(ssePrefix):]
				if bytes.Equal(data, sseDone) {
					select {
					case out <- domain.StreamDelta{Done: true}:
					case <-ctx.Done():
					}
					return
				}
				if delta, err := decode(data); err == nil && delta != nil {
					select {
					case out <- *delta:
					case <-ctx.Done():
						return
					}
					if delta.Done {
						return
					}
				}
			}

			if readErr != nil {
				if readErr != io.EOF {
					// Terminated mid-stream; tell consumers it ended.
					select {
					case out <- domain.StreamDelta{Done: true}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()
	return out
}
