package chat

import "errors"

var (
	ErrNotFound      = errors.New("chat: not found")
	ErrForbidden     = errors.New("chat: forbidden")
	ErrStreamActive  = errors.New("chat: a stream is already active for this chat")
	ErrQuotaExceeded = errors.New("chat: message quota exceeded")
	ErrUnknownModel  = errors.New("chat: unknown model")
)
