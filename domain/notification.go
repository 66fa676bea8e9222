package domain

import "time"

type NotificationType string

const (
	NotificationNewMessage  NotificationType = "new_message"
	NotificationAddedToChat NotificationType = "added_to_chat"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for listing; normal and low share a bucket.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// NotificationPayload is what a client needs to act on a notification.
type NotificationPayload struct {
	ChatID    string      `json:"chatId,omitempty"`
	MessageID string      `json:"messageId,omitempty"`
	SenderID  string      `json:"senderId,omitempty"`
	Preview   string      `json:"preview,omitempty"`
	ChatType  ChatType    `json:"chatType,omitempty"`
	Kind      MessageType `json:"kind,omitempty"`
}

// Notification is a persisted stand-in for a push that could not be
// delivered live. Clients de-duplicate by ID.
type Notification struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Type      NotificationType    `json:"type"`
	Priority  Priority            `json:"priority"`
	Payload   NotificationPayload `json:"payload"`
	IsRead    bool                `json:"isRead"`
	CreatedAt time.Time           `json:"createdAt"`
	ReadAt    *time.Time          `json:"readAt,omitempty"`
}

// NotificationDraft is what producers hand to the notification service.
type NotificationDraft struct {
	Type     NotificationType
	Priority Priority
	Payload  NotificationPayload
}

// PushSubscription is a browser web-push endpoint registered by a user.
type PushSubscription struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint" validate:"required,url"`
	Auth     string `json:"auth" validate:"required"`
	P256dh   string `json:"p256dh" validate:"required"`
}

// NotificationFilter narrows a user's notifications. Zero values match all.
type NotificationFilter struct {
	Types      []NotificationType
	ChatID     string
	UnreadOnly bool
	Since      time.Time
	Limit      int
	Offset     int
}

// MarkReadRequest selects notifications to acknowledge: explicit IDs, or
// every notification matching Filter when All is set.
type MarkReadRequest struct {
	IDs    []string
	All    bool
	Filter NotificationFilter
}
