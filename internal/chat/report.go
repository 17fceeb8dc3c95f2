package chat

import (
	"context"
	"log"
)

// Reporter receives every FAILED transition and every persistence failure.
// Implementations must not block the stream; the default writes structured
// log lines, tests substitute a recording implementation.
type Reporter interface {
	StreamFailed(ctx context.Context, chatID, userID, streamID string, err error)
	// PersistFailed is called when the assistant turn could not be committed
	// after a successful generation. The turn is not regenerated and the
	// client still sees its answer; durability lost, experience kept.
	PersistFailed(ctx context.Context, chatID, userID, snapshot string, err error)
}

type LogReporter struct{}

func (LogReporter) StreamFailed(_ context.Context, chatID, userID, streamID string, err error) {
	log.Printf("[chat] stream failed chat_id=%s user_id=%s stream_id=%s err=%v", chatID, userID, streamID, err)
}

func (LogReporter) PersistFailed(_ context.Context, chatID, userID, snapshot string, err error) {
	log.Printf("[chat] persist failed chat_id=%s user_id=%s err=%v response=%q", chatID, userID, err, snapshot)
}

// TurnEvent is the lifecycle event emitted after every finished turn.
type TurnEvent struct {
	Type      string `json:"type"` // "turn.completed" or "turn.failed"
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	StreamID  string `json:"stream_id"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	TurnCompleted = "turn.completed"
	TurnFailed    = "turn.failed"
)

// EventSink publishes turn lifecycle events, best-effort.
type EventSink interface {
	PublishTurn(ctx context.Context, ev TurnEvent) error
}
