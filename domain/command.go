package domain

import (
	"context"
	"time"
)

// SendMessageCommand asks the delivery runtime to append and fan out one
// message. Ctx belongs to the caller: when it is done before the append
// starts, the command is dropped.
type SendMessageCommand struct {
	Ctx      context.Context
	ChatID   string
	SenderID string
	Content  string
	Type     MessageType
	SentAt   time.Time
	Reply    chan SendResult
}

type SendResult struct {
	Message Message
	Err     error
}

type GetMessagesCommand struct {
	ChatID string
	UserID string
	Page   PageRequest
}
