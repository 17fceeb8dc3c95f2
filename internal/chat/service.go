package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftchat/driftchat/internal/ai"
	"github.com/driftchat/driftchat/internal/stream"
)

type Service struct {
	repo     *Repo
	registry *ai.Registry
	relay    stream.Relay
	reporter Reporter
	events   EventSink

	contextWindow int
	streamTimeout time.Duration
	freshness     time.Duration
	quotaPerDay   int

	// in-process single-writer guard; the relay Active check covers other
	// instances when a shared relay backend is configured
	generating sync.Map // chatID -> struct{}
}

type ServiceConfig struct {
	ContextWindow   int
	StreamTimeout   time.Duration
	ResumeFreshness time.Duration
	// QuotaPerDay <= 0 disables enforcement; the count is still computed.
	QuotaPerDay int
	Reporter    Reporter
	Events      EventSink
}

func NewService(repo *Repo, registry *ai.Registry, relay stream.Relay, cfg ServiceConfig) *Service {
	if cfg.ContextWindow <= 0 || cfg.ContextWindow > 200 {
		cfg.ContextWindow = 50
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 60 * time.Second
	}
	if cfg.ResumeFreshness <= 0 {
		cfg.ResumeFreshness = 15 * time.Second
	}
	if cfg.Reporter == nil {
		cfg.Reporter = LogReporter{}
	}
	return &Service{
		repo:          repo,
		registry:      registry,
		relay:         relay,
		reporter:      cfg.Reporter,
		events:        cfg.Events,
		contextWindow: cfg.ContextWindow,
		streamTimeout: cfg.StreamTimeout,
		freshness:     cfg.ResumeFreshness,
		quotaPerDay:   cfg.QuotaPerDay,
	}
}

// resolveUser looks a user up by name and creates the row lazily on first
// sight. Two concurrent first-time requests race on creation; the loser's
// duplicate-key failure means the row exists, so it re-reads instead of
// failing the request.
func (s *Service) resolveUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrForbidden
	}

	u, err := s.repo.GetUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	created := &User{ID: uuid.NewString(), Name: name}
	if err := s.repo.CreateUser(ctx, created); err == nil {
		return created, nil
	}

	u, err = s.repo.GetUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("chat: user %q not found after create", name)
	}
	return u, nil
}

// RecentMessageCount returns the caller's user-turn count over the trailing
// 24 hours. Quota policy beyond the built-in ceiling lives elsewhere.
func (s *Service) RecentMessageCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUserMessagesSince(ctx, userID, time.Now().Add(-24*time.Hour))
}

// ensureChat resolves the chat record for a turn, creating it with a derived
// title on the first turn. Ownership mismatch is a hard rejection.
func (s *Service) ensureChat(ctx context.Context, chatID string, user *User, firstMessage, visibility string) (*Chat, error) {
	c, err := s.repo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if c.UserID != user.ID {
			return nil, ErrForbidden
		}
		return c, nil
	}

	created := &Chat{
		ID:         chatID,
		UserID:     user.ID,
		Title:      s.generateTitle(ctx, firstMessage),
		Visibility: visibility,
	}
	if err := s.repo.CreateChat(ctx, created); err == nil {
		return created, nil
	}

	// lost a concurrent creation race; accept the surviving row if it is ours
	c, err = s.repo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("chat: chat %q not found after create", chatID)
	}
	if c.UserID != user.ID {
		return nil, ErrForbidden
	}
	return c, nil
}

const maxTitleLen = 80

func (s *Service) generateTitle(ctx context.Context, firstMessage string) string {
	title := ""
	if p, err := s.registry.LanguageModel(ai.ModelTitle); err == nil {
		tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if t, err := p.Chat(tctx, titlePrompt, []ai.Message{{Role: RoleUser, Content: firstMessage}}); err == nil {
			title = strings.TrimSpace(t)
		}
	}
	if title == "" {
		title = strings.TrimSpace(firstMessage)
	}
	if title == "" {
		title = "New chat"
	}
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return title
}

// historyFor reshapes the persisted log into the backend's role/content form,
// windowed to the most recent turns.
func (s *Service) historyFor(ctx context.Context, chatID string) ([]ai.Message, error) {
	rows, err := s.repo.ListMessagesAsc(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(rows) > s.contextWindow {
		rows = rows[len(rows)-s.contextWindow:]
	}
	out := make([]ai.Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, ai.Message{
			ID:      m.ID,
			Role:    m.Role,
			Content: firstText(DecodeParts(m.Parts)),
		})
	}
	return out, nil
}

// authorizeChat resolves the caller and verifies chat ownership; shared by
// the read-side operations (resume, list, delete).
func (s *Service) authorizeChat(ctx context.Context, userName, chatID string) (*User, *Chat, error) {
	u, err := s.repo.GetUserByName(ctx, strings.TrimSpace(userName))
	if err != nil {
		return nil, nil, ErrNotFound
	}
	if u == nil {
		return nil, nil, ErrForbidden
	}
	c, err := s.repo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	if c == nil {
		return nil, nil, ErrNotFound
	}
	if c.UserID != u.ID {
		return nil, nil, ErrForbidden
	}
	return u, c, nil
}

// ListMessages returns a page of chat history, newest first.
func (s *Service) ListMessages(ctx context.Context, userName, chatID string, limit int, beforeSeq uint64) ([]Message, error) {
	if _, _, err := s.authorizeChat(ctx, userName, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessagesPage(ctx, chatID, limit, beforeSeq)
}

// DeleteChat hard-deletes a chat and its messages after an ownership check
// and returns the deleted record.
func (s *Service) DeleteChat(ctx context.Context, userName, chatID string) (*Chat, error) {
	if _, _, err := s.authorizeChat(ctx, userName, chatID); err != nil {
		return nil, err
	}
	deleted, err := s.repo.DeleteChat(ctx, chatID)
	if err != nil {
		return nil, ErrNotFound
	}
	return deleted, nil
}
