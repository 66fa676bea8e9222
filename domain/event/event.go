// Package event defines the JSON frames exchanged over a connection.
// Every frame is an envelope {"type": ..., "payload": ...}.
package event

import (
	"courier/domain"
	"encoding/json"
)

type Type string

// Client to server.
const (
	SendMessage        Type = "send_message"
	JoinChatRoom       Type = "join_chat_room"
	LeaveChatRoom      Type = "leave_chat_room"
	MarkMessageRead    Type = "mark_message_read"
	MarkChatRead       Type = "mark_chat_read"
	TypingStart        Type = "typing_start"
	TypingStop         Type = "typing_stop"
	AckNotifications   Type = "ack_notifications"
	FetchNotifications Type = "fetch_notifications"
	Ping               Type = "ping"
)

// Server to client.
const (
	NewMessage              Type = "new_message"
	MessageStatusUpdate     Type = "message_status_update"
	NotificationEvent       Type = "notification"
	NotificationList        Type = "notifications"
	NotificationCountUpdate Type = "notification_count_update"
	UserOnline              Type = "user_online"
	UserOffline             Type = "user_offline"
	UserTyping              Type = "user_typing"
	UserStoppedTyping       Type = "user_stopped_typing"
	CurrentOnlineUsers      Type = "current_online_users"
	Pong                    Type = "pong"
	Error                   Type = "error"
)

type Inbound struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Outbound struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}

type SendMessagePayload struct {
	ChatID  string             `json:"chatId" validate:"required,excludes=:"`
	Content string             `json:"content" validate:"required,max=4096"`
	Type    domain.MessageType `json:"type" validate:"omitempty,oneof=text image file audio video"`
}

type ChatRefPayload struct {
	ChatID string `json:"chatId" validate:"required,excludes=:"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId" validate:"required,excludes=:"`
	ChatID    string `json:"chatId" validate:"required,excludes=:"`
}

type AckNotificationsPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required,excludes=:"`
}

type FetchNotificationsPayload struct {
	Limit      int                       `json:"limit" validate:"gte=0,lte=100"`
	Offset     int                       `json:"offset" validate:"gte=0"`
	UnreadOnly bool                      `json:"unreadOnly"`
	Types      []domain.NotificationType `json:"types"`
	ChatID     string                    `json:"chatId"`
}

type MessagePayload struct {
	Message domain.Message `json:"message"`
}

func NewMessageEvent(m domain.Message) Outbound {
	return Outbound{Type: NewMessage, Payload: MessagePayload{Message: m}}
}

type StatusPayload struct {
	MessageID string        `json:"messageId"`
	ChatID    string        `json:"chatId"`
	Status    domain.Status `json:"status"`
}

func StatusUpdateEvent(messageID, chatID string, status domain.Status) Outbound {
	return Outbound{Type: MessageStatusUpdate, Payload: StatusPayload{
		MessageID: messageID, ChatID: chatID, Status: status,
	}}
}

type NotificationPayload struct {
	Notification domain.Notification `json:"notification"`
}

func NotificationPushed(n domain.Notification) Outbound {
	return Outbound{Type: NotificationEvent, Payload: NotificationPayload{Notification: n}}
}

type NotificationsPayload struct {
	Notifications []domain.Notification `json:"notifications"`
}

func NotificationsListed(items []domain.Notification) Outbound {
	if items == nil {
		items = []domain.Notification{}
	}
	return Outbound{Type: NotificationList, Payload: NotificationsPayload{Notifications: items}}
}

type CountPayload struct {
	UnreadCount int `json:"unreadCount"`
}

func NotificationCount(unread int) Outbound {
	return Outbound{Type: NotificationCountUpdate, Payload: CountPayload{UnreadCount: unread}}
}

type UserPayload struct {
	UserID string `json:"userId"`
}

func UserOnlineEvent(userID string) Outbound {
	return Outbound{Type: UserOnline, Payload: UserPayload{UserID: userID}}
}

func UserOfflineEvent(userID string) Outbound {
	return Outbound{Type: UserOffline, Payload: UserPayload{UserID: userID}}
}

type TypingPayload struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

func TypingEvent(t Type, userID, chatID string) Outbound {
	return Outbound{Type: t, Payload: TypingPayload{UserID: userID, ChatID: chatID}}
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

func OnlineUsersEvent(userIDs []string) Outbound {
	if userIDs == nil {
		userIDs = []string{}
	}
	return Outbound{Type: CurrentOnlineUsers, Payload: OnlineUsersPayload{UserIDs: userIDs}}
}

type ErrorPayload struct {
	Event   Type   `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ErrorEvent(cause Type, code, message string) Outbound {
	return Outbound{Type: Error, Payload: ErrorPayload{Event: cause, Code: code, Message: message}}
}
