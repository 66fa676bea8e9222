package domain

import "time"

type ChatType string

const (
	PrivateChat ChatType = "private"
	GroupChat   ChatType = "group"
)

// Chat is a conversation. LastActivity and LastMessagePreview are
// maintained asynchronously and may briefly lag the message log.
type Chat struct {
	ID                 string    `json:"id"`
	Type               ChatType  `json:"type"`
	Name               string    `json:"name,omitempty"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
	LastActivity       time.Time `json:"lastActivity"`
	LastMessageID      string    `json:"lastMessageId,omitempty"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
}

// ChatSummary is a chat as listed for one user.
type ChatSummary struct {
	Chat
	Members     []string `json:"members"`
	UnreadCount int      `json:"unreadCount"`
}

// ActivityUpdate moves a chat's lastActivity forward.
type ActivityUpdate struct {
	ChatID    string
	MessageID string
	Preview   string
	At        time.Time
}
