package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftchat/driftchat/internal/ai"
	"github.com/driftchat/driftchat/internal/common"
	"github.com/driftchat/driftchat/internal/stream"
)

// TurnRequest is one admitted user turn.
type TurnRequest struct {
	ChatID      string
	MessageID   string // client-supplied, globally unique
	Content     string
	Parts       []Part
	Attachments []Attachment
	Model       string
	Visibility  string
	Hints       RequestHints
}

type genState struct {
	chatID   string
	userID   string
	streamID string
	system   string
	history  []ai.Message
	// last user turn content, for the fallback completion
	prompt string
}

// StreamReply runs the turn state machine up to GENERATING and returns the
// issued stream id plus a subscription carrying the reply events. Generation
// continues in the background: cancelling ctx (client disconnect) stops
// delivery to this subscription but not generation or persistence.
func (s *Service) StreamReply(ctx context.Context, userName string, req TurnRequest) (string, *stream.Subscription, error) {
	provider, err := s.registry.LanguageModel(req.Model)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownModel, req.Model)
	}

	user, err := s.resolveUser(ctx, userName)
	if err != nil {
		return "", nil, err
	}

	count, err := s.RecentMessageCount(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if s.quotaPerDay > 0 && count >= int64(s.quotaPerDay) {
		return "", nil, ErrQuotaExceeded
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	chatRec, err := s.ensureChat(ctx, req.ChatID, user, req.Content, visibility)
	if err != nil {
		return "", nil, err
	}

	// ADMITTED: the user's own turn is durable before generation starts, and
	// replays with the same message id do not duplicate it.
	parts := req.Parts
	if len(parts) == 0 && req.Content != "" {
		parts = []Part{{Type: PartText, Text: req.Content}}
	}
	if err := s.repo.SaveMessage(ctx, &Message{
		ID:          req.MessageID,
		ChatID:      chatRec.ID,
		Role:        RoleUser,
		Parts:       EncodeParts(parts),
		Attachments: EncodeAttachments(req.Attachments),
	}); err != nil {
		return "", nil, err
	}

	// Single-writer admission: one generation per chat at a time.
	if _, busy := s.generating.LoadOrStore(chatRec.ID, struct{}{}); busy {
		return "", nil, ErrStreamActive
	}
	release := func() { s.generating.Delete(chatRec.ID) }

	if latest, lerr := s.repo.LatestStream(ctx, chatRec.ID); lerr == nil && latest != nil {
		if active, _ := s.relay.Active(ctx, latest.StreamID); active {
			release()
			return "", nil, ErrStreamActive
		}
	}

	history, err := s.historyFor(ctx, chatRec.ID)
	if err != nil {
		release()
		return "", nil, err
	}

	// STREAM_ISSUED: the record goes in before any output exists, so a crash
	// mid-generation still leaves a discoverable stream id.
	sid, err := common.NewULID()
	if err != nil {
		release()
		return "", nil, err
	}
	if err := s.repo.CreateStream(ctx, &Stream{StreamID: sid, ChatID: chatRec.ID}); err != nil {
		release()
		return "", nil, err
	}

	w, err := s.relay.Open(ctx, sid)
	if err != nil {
		release()
		return "", nil, err
	}
	sub, err := s.relay.Attach(ctx, sid)
	if err != nil || sub == nil {
		_ = w.Close(ctx)
		release()
		if err == nil {
			err = errors.New("chat: could not attach to own stream")
		}
		return "", nil, err
	}

	// GENERATING: detached from the request context; only the wall-clock
	// ceiling bounds it.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.streamTimeout)
	go func() {
		defer cancel()
		defer release()
		s.generate(genCtx, provider, w, genState{
			chatID:   chatRec.ID,
			userID:   user.ID,
			streamID: sid,
			system:   systemPrompt(req.Model, req.Hints),
			history:  history,
			prompt:   req.Content,
		})
	}()

	return sid, sub, nil
}

func (s *Service) generate(ctx context.Context, provider ai.Provider, w stream.Writer, g genState) {
	var (
		chunks  <-chan string
		results <-chan ai.Result
		errsCh  <-chan error
	)
	if sp, ok := provider.(ai.StreamProvider); ok {
		chunks, results, errsCh = sp.StreamChat(ctx, g.system, g.history)
	} else {
		chunks, results, errsCh = blockingStream(ctx, provider, g.system, g.history)
	}

	for c := range ai.SmoothStream(chunks) {
		_ = w.Write(ctx, stream.Event{Type: stream.EventChunk, Delta: c})
	}

	res := <-results
	if err, ok := <-errsCh; ok && err != nil {
		s.fail(w, g, err)
		return
	}

	// COMPLETED. Persistence gets its own deadline: a generation that beat the
	// ceiling by a hair still commits.
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer pcancel()

	msgs := res.Messages
	if len(msgs) == 0 {
		// Backend streamed content but reported no structured terminal
		// message; re-issue a single non-streaming completion for the last
		// user turn and persist that instead.
		text, err := provider.Chat(pctx, g.system, []ai.Message{{Role: RoleUser, Content: g.prompt}})
		if err != nil {
			s.fail(w, g, err)
			return
		}
		msgs = []ai.Message{{Role: RoleAssistant, Content: text}}
	}

	assistant := msgs[0]
	msgID := assistant.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}

	row := &Message{
		ID:          msgID,
		ChatID:      g.chatID,
		Role:        RoleAssistant,
		Parts:       EncodeParts([]Part{{Type: PartText, Text: assistant.Content}}),
		Attachments: "[]",
	}
	if err := s.repo.SaveMessage(pctx, row); err != nil {
		// Deliberate trade-off: the client already has its answer, so a
		// commit failure is reported but not retried and not surfaced as a
		// stream error.
		s.reporter.PersistFailed(pctx, g.chatID, g.userID, assistant.Content, err)
	}

	_ = w.Write(pctx, stream.Event{Type: stream.EventDone, MessageID: msgID})
	_ = w.Close(pctx)
	s.publish(pctx, TurnEvent{
		Type:      TurnCompleted,
		ChatID:    g.chatID,
		UserID:    g.userID,
		StreamID:  g.streamID,
		MessageID: msgID,
	})
}

// fail transitions the stream to FAILED: the client receives a terminal error
// event and no assistant turn is committed.
func (s *Service) fail(w stream.Writer, g genState, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = w.Write(ctx, stream.Event{Type: stream.EventError, Error: "Oops, an error occurred!"})
	_ = w.Close(ctx)
	s.reporter.StreamFailed(ctx, g.chatID, g.userID, g.streamID, err)
	s.publish(ctx, TurnEvent{
		Type:     TurnFailed,
		ChatID:   g.chatID,
		UserID:   g.userID,
		StreamID: g.streamID,
		Error:    err.Error(),
	})
}

func (s *Service) publish(ctx context.Context, ev TurnEvent) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishTurn(ctx, ev)
}

// blockingStream adapts a non-streaming provider to the streaming contract so
// the orchestrator has a single code path.
func blockingStream(ctx context.Context, p ai.Provider, system string, msgs []ai.Message) (<-chan string, <-chan ai.Result, <-chan error) {
	chunks := make(chan string, 1)
	results := make(chan ai.Result, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(results)
		defer close(errs)

		text, err := p.Chat(ctx, system, msgs)
		if err != nil {
			errs <- err
			return
		}
		if text != "" {
			chunks <- text
		}
		var out []ai.Message
		if text != "" {
			out = []ai.Message{{Role: RoleAssistant, Content: text}}
		}
		results <- ai.Result{Messages: out}
	}()

	return chunks, results, errs
}
