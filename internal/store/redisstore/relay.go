// Package redisstore backs the live stream relay with Redis pub/sub so that a
// client can resume a stream served by a different instance.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftchat/driftchat/internal/stream"
)

const (
	streamKeyPrefix = "chatstream:"
	// liveness marker TTL; comfortably above the stream wall-clock ceiling
	liveTTL = 5 * time.Minute
	// control payload closing subscriber channels when the writer concludes
	eosType = "__eos"
)

type Relay struct {
	client *redis.Client
}

func NewRelay(client *redis.Client) *Relay {
	return &Relay{client: client}
}

func liveKey(streamID string) string    { return streamKeyPrefix + streamID + ":live" }
func channelKey(streamID string) string { return streamKeyPrefix + streamID }

type relayWriter struct {
	client   *redis.Client
	streamID string
}

func (r *Relay) Open(ctx context.Context, streamID string) (stream.Writer, error) {
	if err := r.client.Set(ctx, liveKey(streamID), "1", liveTTL).Err(); err != nil {
		return nil, err
	}
	return &relayWriter{client: r.client, streamID: streamID}, nil
}

func (r *Relay) Attach(ctx context.Context, streamID string) (*stream.Subscription, error) {
	exists, err := r.client.Exists(ctx, liveKey(streamID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}

	pubsub := r.client.Subscribe(ctx, channelKey(streamID))
	// force the subscription onto the wire before reporting attached
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan stream.Event, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev stream.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.Type == eosType {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &stream.Subscription{
		C:      out,
		Cancel: func() { _ = pubsub.Close() },
	}, nil
}

func (r *Relay) Active(ctx context.Context, streamID string) (bool, error) {
	exists, err := r.client.Exists(ctx, liveKey(streamID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (w *relayWriter) Write(ctx context.Context, ev stream.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := w.client.Publish(ctx, channelKey(w.streamID), payload).Err(); err != nil {
		return err
	}
	// keep the liveness marker ahead of long generations
	return w.client.Expire(ctx, liveKey(w.streamID), liveTTL).Err()
}

func (w *relayWriter) Close(ctx context.Context) error {
	eos, _ := json.Marshal(stream.Event{Type: eosType})
	_ = w.client.Publish(ctx, channelKey(w.streamID), eos).Err()
	return w.client.Del(ctx, liveKey(w.streamID)).Err()
}
