package ai

import "context"

type Message struct {
	// ID is set when the backend assigns one to a terminal message.
	ID      string
	Role    string
	Content string
}

// Result is the structured terminal outcome of a streamed generation.
// Messages may be empty even when the chunk stream carried content; callers
// are expected to compensate rather than treat that as a protocol violation.
type Result struct {
	Messages []Message
}

type Provider interface {
	Chat(ctx context.Context, system string, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
// All three channels are closed when the stream ends; Result is delivered at
// most once, after the last chunk.
type StreamProvider interface {
	StreamChat(ctx context.Context, system string, messages []Message) (<-chan string, <-chan Result, <-chan error)
}
