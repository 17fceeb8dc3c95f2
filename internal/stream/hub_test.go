package stream

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, err := h.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, err := h.Attach(ctx, "s1")
	if err != nil || a == nil {
		t.Fatalf("Attach a: %v %v", a, err)
	}
	b, err := h.Attach(ctx, "s1")
	if err != nil || b == nil {
		t.Fatalf("Attach b: %v %v", b, err)
	}

	if err := w.Write(ctx, Event{Type: EventChunk, Delta: "hi"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, sub := range []*Subscription{a, b} {
		ev, ok := recv(t, sub)
		if !ok || ev.Delta != "hi" {
			t.Fatalf("event = %+v ok=%v", ev, ok)
		}
	}

	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := recv(t, a); ok {
		t.Fatal("subscription should be closed after writer close")
	}
}

func TestHubAttachAfterCloseReturnsNil(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, err := h.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sub, err := h.Attach(ctx, "s1")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if sub != nil {
		t.Fatal("expected nil subscription for a concluded stream")
	}
	if sub, _ := h.Attach(ctx, "never-opened"); sub != nil {
		t.Fatal("expected nil subscription for an unknown stream")
	}
}

func TestHubAttachDoesNotReplay(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, _ := h.Open(ctx, "s1")
	if err := w.Write(ctx, Event{Type: EventChunk, Delta: "early"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sub, err := h.Attach(ctx, "s1")
	if err != nil || sub == nil {
		t.Fatalf("Attach: %v %v", sub, err)
	}
	if err := w.Write(ctx, Event{Type: EventChunk, Delta: "late"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ev, ok := recv(t, sub)
	if !ok || ev.Delta != "late" {
		t.Fatalf("first delivered event = %+v, want the post-attach one", ev)
	}
	_ = w.Close(ctx)
}

func TestHubActiveTracksOpenStreams(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	if active, _ := h.Active(ctx, "s1"); active {
		t.Fatal("unknown stream reported active")
	}
	w, _ := h.Open(ctx, "s1")
	if active, _ := h.Active(ctx, "s1"); !active {
		t.Fatal("open stream reported inactive")
	}
	_ = w.Close(ctx)
	if active, _ := h.Active(ctx, "s1"); active {
		t.Fatal("closed stream reported active")
	}
}

func TestHubRejectsDoubleOpen(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, err := h.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := h.Open(ctx, "s1"); err == nil {
		t.Fatal("second Open should fail while the stream is live")
	}
	_ = w.Close(ctx)
	if _, err := h.Open(ctx, "s1"); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestHubWriteAfterCloseFails(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, _ := h.Open(ctx, "s1")
	_ = w.Close(ctx)
	if err := w.Write(ctx, Event{Type: EventChunk, Delta: "x"}); err == nil {
		t.Fatal("write on a closed stream should fail")
	}
}

func TestHubEvictsStalledSubscriber(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	w, _ := h.Open(ctx, "s1")
	slow, _ := h.Attach(ctx, "s1")
	fast, _ := h.Attach(ctx, "s1")

	// overflow the slow subscriber's buffer without draining it
	for i := 0; i < subBuffer+1; i++ {
		if err := w.Write(ctx, Event{Type: EventChunk, Delta: "x"}); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		// keep the fast subscriber drained
		<-fast.C
	}

	// the slow channel was closed at eviction; its buffered events remain
	n := 0
	for range slow.C {
		n++
	}
	if n != subBuffer {
		t.Fatalf("slow subscriber drained %d events, want %d", n, subBuffer)
	}
	_ = w.Close(ctx)
}

func TestEventTerminal(t *testing.T) {
	if (Event{Type: EventChunk}).Terminal() {
		t.Fatal("chunk should not be terminal")
	}
	if (Event{Type: EventAppendMessage}).Terminal() {
		t.Fatal("append-message should not be terminal")
	}
	if !(Event{Type: EventDone}).Terminal() {
		t.Fatal("done should be terminal")
	}
	if !(Event{Type: EventError}).Terminal() {
		t.Fatal("error should be terminal")
	}
}
