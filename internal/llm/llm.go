package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the chat model cannot be reached or
// rejects the request outright (e.g. missing credentials).
var ErrUnavailable = errors.New("llm: chat model unavailable")

// FinishStop is the finish reason that ends a streamed completion normally.
const FinishStop = "stop"

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is one chat completion request.
type Request struct {
	Messages []Message
	// User associates the request with a memory user. Empty means anonymous.
	User string
}

// Delta is one streamed increment of a completion.
type Delta struct {
	Content      string
	FinishReason string
}

// Stream yields deltas until it returns io.EOF.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

// Client defines the interface for chat model providers.
type Client interface {
	// Stream starts a streamed completion.
	Stream(ctx context.Context, req Request) (Stream, error)

	// Complete returns the full completion in one piece.
	Complete(ctx context.Context, req Request) (string, error)
}
