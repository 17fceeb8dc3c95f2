// Package stream carries in-progress assistant replies from the generating
// request to any number of attached consumers, so a reconnecting client can
// pick a live stream back up by id.
package stream

import (
	"context"
	"encoding/json"
)

// Event types relayed to clients.
const (
	EventChunk         = "chunk"
	EventAppendMessage = "append-message"
	EventError         = "error"
	EventDone          = "done"
)

type Event struct {
	Type      string          `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Terminal reports whether ev concludes a stream.
func (ev Event) Terminal() bool {
	return ev.Type == EventDone || ev.Type == EventError
}

type Writer interface {
	Write(ctx context.Context, ev Event) error
	// Close concludes the stream. Attached subscribers see their channel
	// closed; later Attach calls observe the stream as concluded.
	Close(ctx context.Context) error
}

// Subscription delivers events from the moment of attachment onward. Chunks
// already delivered to other consumers are not replayed.
type Subscription struct {
	C      <-chan Event
	Cancel func()
}

type Relay interface {
	Open(ctx context.Context, streamID string) (Writer, error)
	// Attach returns nil when the stream is unknown or already concluded.
	Attach(ctx context.Context, streamID string) (*Subscription, error)
	Active(ctx context.Context, streamID string) (bool, error)
}
