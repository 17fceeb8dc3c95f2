package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/driftchat/driftchat/internal/ai"
	"github.com/driftchat/driftchat/internal/stream"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Chat{}, &Message{}, &Stream{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type chatCall struct {
	system string
	msgs   []ai.Message
}

// scriptedProvider plays back a fixed chunk sequence and terminal result, and
// records every blocking Chat call.
type scriptedProvider struct {
	mu        sync.Mutex
	chunks    []string
	result    ai.Result
	streamErr error
	chatReply string
	chatErr   error
	// when set, StreamChat holds the stream open until the gate is closed or
	// the context expires
	gate chan struct{}

	chatCalls   []chatCall
	streamCalls int
}

func (p *scriptedProvider) Chat(_ context.Context, system string, msgs []ai.Message) (string, error) {
	p.mu.Lock()
	p.chatCalls = append(p.chatCalls, chatCall{system: system, msgs: append([]ai.Message(nil), msgs...)})
	reply, err := p.chatReply, p.chatErr
	p.mu.Unlock()
	return reply, err
}

func (p *scriptedProvider) StreamChat(ctx context.Context, _ string, _ []ai.Message) (<-chan string, <-chan ai.Result, <-chan error) {
	p.mu.Lock()
	p.streamCalls++
	chunksIn := append([]string(nil), p.chunks...)
	gate := p.gate
	streamErr := p.streamErr
	result := p.result
	p.mu.Unlock()

	chunks := make(chan string, len(chunksIn)+1)
	results := make(chan ai.Result, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(results)
		defer close(errs)

		for _, c := range chunksIn {
			chunks <- c
		}
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if streamErr != nil {
			errs <- streamErr
			return
		}
		results <- result
	}()

	return chunks, results, errs
}

func (p *scriptedProvider) chatCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chatCalls)
}

type recordingReporter struct {
	mu            sync.Mutex
	streamFailed  []error
	persistFailed []error
}

func (r *recordingReporter) StreamFailed(_ context.Context, _, _, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamFailed = append(r.streamFailed, err)
}

func (r *recordingReporter) PersistFailed(_ context.Context, _, _, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistFailed = append(r.persistFailed, err)
}

func (r *recordingReporter) streamFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streamFailed)
}

func (r *recordingReporter) persistFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.persistFailed)
}

type recordingSink struct {
	mu     sync.Mutex
	events []TurnEvent
}

func (s *recordingSink) PublishTurn(_ context.Context, ev TurnEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) published() []TurnEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TurnEvent(nil), s.events...)
}

type testEnv struct {
	db       *gorm.DB
	repo     *Repo
	svc      *Service
	provider *scriptedProvider
	reporter *recordingReporter
	sink     *recordingSink
}

func newTestEnv(t *testing.T, provider *scriptedProvider, cfg ServiceConfig) *testEnv {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	registry := ai.NewRegistry(map[string]ai.Provider{
		ai.ModelChat:          provider,
		ai.ModelChatReasoning: provider,
		ai.ModelTitle:         provider,
	})
	reporter := &recordingReporter{}
	sink := &recordingSink{}
	cfg.Reporter = reporter
	cfg.Events = sink
	svc := NewService(repo, registry, stream.NewHub(), cfg)
	return &testEnv{
		db:       db,
		repo:     repo,
		svc:      svc,
		provider: provider,
		reporter: reporter,
		sink:     sink,
	}
}

func turnRequest(chatID, msgID, content string) TurnRequest {
	return TurnRequest{
		ChatID:    chatID,
		MessageID: msgID,
		Content:   content,
		Model:     ai.ModelChat,
	}
}

// drain consumes a subscription until a terminal event or close and returns
// the concatenated deltas plus the terminal event.
func drain(t *testing.T, sub *stream.Subscription) (string, stream.Event) {
	t.Helper()
	var text string
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return text, stream.Event{}
			}
			if ev.Type == stream.EventChunk {
				text += ev.Delta
			}
			if ev.Terminal() {
				return text, ev
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out draining subscription")
		}
	}
}

// waitIdle blocks until the chat's generation guard is released.
func (e *testEnv) waitIdle(t *testing.T, chatID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, busy := e.svc.generating.Load(chatID); !busy {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chat %s still generating", chatID)
}

func (e *testEnv) messages(t *testing.T, chatID string) []Message {
	t.Helper()
	msgs, err := e.repo.ListMessagesAsc(context.Background(), chatID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}
