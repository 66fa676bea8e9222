package contract

import (
	"context"
	"courier/domain"
	"time"
)

// IPresence tracks open connections per user. It is the only in-memory
// shared state of the server and is never persisted.
type IPresence interface {
	Register(ctx context.Context, sink ConnectionSink) bool
	Unregister(ctx context.Context, connectionID string) bool
	IsOnline(userID string) bool
	ListOnline() []string
	SinksForUser(userID string) []ConnectionSink
	JoinRoom(connectionID, chatID string)
	LeaveRoom(connectionID, chatID string)
	SinksForRoom(chatID string) []ConnectionSink
}

type IMembership interface {
	Members(ctx context.Context, chatID string) ([]string, error)
	// MembersAt lists the users who had joined the chat at or before at.
	MembersAt(ctx context.Context, chatID string, at time.Time) ([]string, error)
	Role(ctx context.Context, chatID, userID string) (domain.Role, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	Invalidate(chatID string)
}

type IMessageStore interface {
	Append(ctx context.Context, chatID, senderID, content string, kind domain.MessageType) (domain.Message, error)
	Get(ctx context.Context, messageID string) (domain.Message, error)
	List(ctx context.Context, chatID string, page domain.PageRequest) (domain.MessagePage, error)
}

type IReceiptTracker interface {
	RecordDelivered(ctx context.Context, messageID, userID string) (domain.ReceiptResult, error)
	RecordRead(ctx context.Context, messageID, userID string) (domain.ReceiptResult, error)
	MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error)
	AggregateStatus(ctx context.Context, messageID string) (domain.Status, error)
	UnreadCount(ctx context.Context, userID, chatID string) (int, error)
}

// IStatusPublisher pushes a message's aggregate status to its sender
// whenever it moves forward.
type IStatusPublisher interface {
	Publish(ctx context.Context, messageID string)
}

type INotifier interface {
	Enqueue(ctx context.Context, userID string, draft domain.NotificationDraft) (domain.Notification, error)
	GetUnread(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, req domain.MarkReadRequest) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Subscribe(ctx context.Context, sub domain.PushSubscription) error
}
