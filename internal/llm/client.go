package llm

import (
	"context"
	"strings"
)

// Client calls a language model, either for the driving model's main loop
// or for a sub-agent's mini-loop (spec.md §4.1, §4.6).
type Client interface {
	// Stream sends a conversation and streams back text chunks. The channel
	// is closed after a chunk with Done=true (or an error) is delivered.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// Complete sends a conversation and waits for the full response. Used
	// by sub-agents, which do not emit stream-token events (spec.md §4.6).
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ModelInfo describes the connected model.
	ModelInfo() *ModelInfo

	// Close releases held resources (HTTP connections, etc.).
	Close() error
}

// CollectStream drains a Stream channel into a single ChatResponse, for
// callers that started a stream but need the aggregate result.
func CollectStream(ch <-chan StreamChunk) (*ChatResponse, error) {
	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		b.WriteString(chunk.Text)
		if chunk.Done {
			break
		}
	}
	return &ChatResponse{Content: b.String(), FinishReason: "stop"}, nil
}
