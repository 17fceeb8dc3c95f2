package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Users

func (r *Repo) GetUserByName(ctx context.Context, name string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// Chats

func (r *Repo) GetChatByID(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// DeleteChat removes the chat, its messages and its stream records in one
// transaction and returns the deleted chat row.
func (r *Repo) DeleteChat(ctx context.Context, id string) (*Chat, error) {
	var deleted Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deleted).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Stream{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Chat{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// Messages

// SaveMessage appends a message. The append is idempotent on the message id:
// a replayed turn with an id that already exists is a no-op, not an error.
func (r *Repo) SaveMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(m).Error
}

// ListMessagesAsc returns the full ordered history for a chat, oldest first.
func (r *Repo) ListMessagesAsc(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesPage returns messages in DESC order (newest -> oldest) for
// paginated history views.
func (r *Repo) ListMessagesPage(ctx context.Context, chatID string, limit int, beforeSeq uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq DESC").
		Limit(limit)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// LastMessage returns the newest message for a chat, or nil when the chat has
// no messages.
func (r *Repo) LastMessage(ctx context.Context, chatID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("seq DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CountUserMessagesSince counts user-authored turns across all chats owned by
// the user since the given time; this is the quota input, not the policy.
func (r *Repo) CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Joins("JOIN chats ON chats.id = chat_messages.chat_id").
		Where("chats.user_id = ?", userID).
		Where("chat_messages.role = ?", RoleUser).
		Where("chat_messages.created_at >= ?", since).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Streams

func (r *Repo) CreateStream(ctx context.Context, s *Stream) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// LatestStream returns the most recently issued stream record for a chat, or
// nil when none was ever issued.
func (r *Repo) LatestStream(ctx context.Context, chatID string) (*Stream, error) {
	var s Stream
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq DESC").
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
