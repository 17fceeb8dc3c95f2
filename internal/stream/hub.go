package stream

import (
	"context"
	"fmt"
	"sync"
)

// subscriber buffer; a consumer this far behind is evicted and falls back to
// the resume path.
const subBuffer = 256

// Hub is the in-process Relay used by single-node deployments and tests.
type Hub struct {
	mu      sync.Mutex
	streams map[string]*hubStream
}

type hubStream struct {
	mu     sync.Mutex
	closed bool
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{streams: make(map[string]*hubStream)}
}

type hubWriter struct {
	hub      *Hub
	streamID string
	s        *hubStream
}

func (h *Hub) Open(_ context.Context, streamID string) (Writer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[streamID]; ok {
		return nil, fmt.Errorf("stream %s already open", streamID)
	}
	s := &hubStream{subs: make(map[int]chan Event)}
	h.streams[streamID] = s
	return &hubWriter{hub: h, streamID: streamID, s: s}, nil
}

func (h *Hub) Attach(_ context.Context, streamID string) (*Subscription, error) {
	h.mu.Lock()
	s, ok := h.streams[streamID]
	h.mu.Unlock()
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil
	}
	id := s.nextID
	s.nextID++
	ch := make(chan Event, subBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return &Subscription{C: ch, Cancel: cancel}, nil
}

func (h *Hub) Active(_ context.Context, streamID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.streams[streamID]
	return ok, nil
}

func (w *hubWriter) Write(_ context.Context, ev Event) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.closed {
		return fmt.Errorf("stream %s is closed", w.streamID)
	}
	for id, ch := range w.s.subs {
		select {
		case ch <- ev:
		default:
			// subscriber stalled; drop it rather than stall generation
			delete(w.s.subs, id)
			close(ch)
		}
	}
	return nil
}

func (w *hubWriter) Close(_ context.Context) error {
	w.hub.mu.Lock()
	delete(w.hub.streams, w.streamID)
	w.hub.mu.Unlock()

	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.closed {
		return nil
	}
	w.s.closed = true
	for id, ch := range w.s.subs {
		delete(w.s.subs, id)
		close(ch)
	}
	return nil
}
