package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

type Chat struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"` // client-supplied on first turn
	UserID     string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Title      string    `gorm:"type:varchar(128);not null" json:"title"`
	Visibility string    `gorm:"type:varchar(16);not null" json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Chat) TableName() string { return "chats" }

// Message is one immutable turn in a chat. Seq breaks created_at ties so the
// persisted order matches insertion order.
type Message struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	ChatID      string    `gorm:"type:varchar(64);index;not null" json:"chat_id"`
	Role        string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Parts       string    `gorm:"type:text;not null" json:"parts"`
	Attachments string    `gorm:"type:text;not null" json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Stream is one issued stream id. Append-only; the highest Seq per chat is
// the only record eligible for resume.
type Stream struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	StreamID  string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"stream_id"`
	ChatID    string    `gorm:"type:varchar(64);index;not null" json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Stream) TableName() string { return "chat_streams" }
