// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once appended; only their derived status changes.
package domain

import (
	"time"
)

type MessageType string

const (
	TextMessage   MessageType = "text"
	ImageMessage  MessageType = "image"
	FileMessage   MessageType = "file"
	AudioMessage  MessageType = "audio"
	VideoMessage  MessageType = "video"
	SystemMessage MessageType = "system"
)

// Message represents an immutable chat event.
// Seq is the per-chat append position and defines delivery order.
// Status is never stored, it is derived from receipts when read back.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	SenderID  string      `json:"senderId"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Status    Status      `json:"status,omitempty"`
}

// Preview is the truncated form shown in chat lists and notifications.
func (m Message) Preview() string {
	if m.Type != TextMessage && m.Type != "" {
		return "[" + string(m.Type) + "]"
	}
	const max = 80
	r := []rune(m.Content)
	if len(r) <= max {
		return m.Content
	}
	return string(r[:max]) + "…"
}

// MessagePage is a newest-first slice of a chat log.
// Cursor is empty when the oldest message has been reached.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Cursor   string    `json:"cursor,omitempty"`
}

// PageRequest selects a page of a chat log. Cursor is the opaque value
// returned by a previous page; Offset skips that many of the newest
// messages and is ignored when Cursor is set.
type PageRequest struct {
	Limit  int
	Cursor string
	Offset int
}
