package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/driftchat/driftchat/internal/stream"
)

// Resume reconnects a client to the most recent stream for a chat.
//
// It returns a live subscription when generation is still in progress, a
// one-event subscription carrying the last persisted assistant turn when the
// stream concluded within the freshness window, and (nil, nil) when there is
// nothing to resume.
func (s *Service) Resume(ctx context.Context, userName, chatID string) (*stream.Subscription, error) {
	_, _, err := s.authorizeChat(ctx, userName, chatID)
	if err != nil {
		return nil, err
	}

	latest, err := s.repo.LatestStream(ctx, chatID)
	if err != nil {
		return nil, ErrNotFound
	}
	if latest == nil {
		// no active or historical stream
		return nil, nil
	}

	sub, err := s.relay.Attach(ctx, latest.StreamID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	// The stream concluded server-side; converge the client to the last
	// persisted state instead.
	last, err := s.repo.LastMessage(ctx, chatID)
	if err != nil {
		return nil, ErrNotFound
	}
	if last == nil || last.Role != RoleAssistant {
		return nil, nil
	}
	if time.Since(last.CreatedAt) > s.freshness {
		// stale; re-delivering an old answer as if live would mislead
		return nil, nil
	}

	payload, err := json.Marshal(last)
	if err != nil {
		return nil, err
	}
	return singleEventSubscription(stream.Event{
		Type:    stream.EventAppendMessage,
		Message: payload,
	}), nil
}

func singleEventSubscription(ev stream.Event) *stream.Subscription {
	ch := make(chan stream.Event, 1)
	ch <- ev
	close(ch)
	return &stream.Subscription{C: ch, Cancel: func() {}}
}
