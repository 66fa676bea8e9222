package gateway

import (
	"context"
	"courier/domain"
	"courier/domain/event"
	"courier/errors"
	"encoding/json"
	"fmt"
)

type handlerFunc func(g *Gateway, ctx context.Context, c *Client, payload json.RawMessage) error

// One handler per inbound frame type.
var handlers = map[event.Type]handlerFunc{
	event.SendMessage:        (*Gateway).sendMessage,
	event.JoinChatRoom:       (*Gateway).joinRoom,
	event.LeaveChatRoom:      (*Gateway).leaveRoom,
	event.MarkMessageRead:    (*Gateway).markMessageRead,
	event.MarkChatRead:       (*Gateway).markChatRead,
	event.TypingStart:        (*Gateway).typingStart,
	event.TypingStop:         (*Gateway).typingStop,
	event.AckNotifications:   (*Gateway).ackNotifications,
	event.FetchNotifications: (*Gateway).fetchNotifications,
	event.Ping:               (*Gateway).ping,
}

// dispatch runs the handler for in. Any failure goes back to the
// originating connection as an error event and nowhere else.
func (g *Gateway) dispatch(ctx context.Context, c *Client, in event.Inbound) {
	handle, ok := handlers[in.Type]
	if !ok {
		g.reject(c, in.Type, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, in.Type))
		return
	}
	if err := handle(g, ctx, c, in.Payload); err != nil {
		g.reject(c, in.Type, err)
	}
}

func (g *Gateway) reject(c *Client, cause event.Type, err error) {
	code := errors.ToCode(err)
	if code == errors.CodeInternal {
		c.log.Error("Event failed", "type", cause, "error", err)
	} else {
		c.log.Debug("Event rejected", "type", cause, "error", err)
	}
	_ = c.Send(event.ErrorEvent(cause, string(code), err.Error()))
}

// decode unmarshals and validates payload into out.
func (g *Gateway) decode(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := g.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

func (g *Gateway) requireMember(ctx context.Context, chatID, userID string) error {
	member, err := g.membership.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: %s in %s", errors.ErrNotMember, userID, chatID)
	}
	return nil
}

// sendMessage needs no reply of its own: the echo of new_message to the
// sender's connections acknowledges it.
func (g *Gateway) sendMessage(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.SendMessagePayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	_, err := g.sender.Send(ctx, domain.SendMessageCommand{
		ChatID:   p.ChatID,
		SenderID: c.UserID(),
		Content:  p.Content,
		Type:     p.Type,
	})
	return err
}

func (g *Gateway) joinRoom(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.ChatRefPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	if err := g.requireMember(ctx, p.ChatID, c.UserID()); err != nil {
		return err
	}
	g.presence.JoinRoom(c.ID(), p.ChatID)
	return nil
}

func (g *Gateway) leaveRoom(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.ChatRefPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	g.presence.LeaveRoom(c.ID(), p.ChatID)
	return nil
}

func (g *Gateway) markMessageRead(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.MarkReadPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	result, err := g.chats.ReadMessage(ctx, c.UserID(), p.ChatID, p.MessageID)
	if err != nil {
		return err
	}
	if result.Created {
		g.stats.IncrReceiptsWritten()
	}
	return nil
}

func (g *Gateway) markChatRead(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.ChatRefPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	_, err := g.chats.MarkChatRead(ctx, c.UserID(), p.ChatID)
	return err
}

func (g *Gateway) typingStart(ctx context.Context, c *Client, payload json.RawMessage) error {
	return g.typing(ctx, c, payload, event.UserTyping)
}

func (g *Gateway) typingStop(ctx context.Context, c *Client, payload json.RawMessage) error {
	return g.typing(ctx, c, payload, event.UserStoppedTyping)
}

// typing reaches the connections that joined the chat room, except the
// typing user's own.
func (g *Gateway) typing(ctx context.Context, c *Client, payload json.RawMessage, kind event.Type) error {
	var p event.ChatRefPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	if err := g.requireMember(ctx, p.ChatID, c.UserID()); err != nil {
		return err
	}
	evt := event.TypingEvent(kind, c.UserID(), p.ChatID)
	for _, sink := range g.presence.SinksForRoom(p.ChatID) {
		if sink.UserID() == c.UserID() {
			continue
		}
		_ = sink.Send(evt)
	}
	return nil
}

func (g *Gateway) ackNotifications(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.AckNotificationsPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	_, err := g.notifier.MarkRead(ctx, c.UserID(), domain.MarkReadRequest{IDs: p.IDs})
	return err
}

func (g *Gateway) fetchNotifications(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p event.FetchNotificationsPayload
	if err := g.decode(payload, &p); err != nil {
		return err
	}
	filter := domain.NotificationFilter{
		Types:  p.Types,
		ChatID: p.ChatID,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	var (
		items []domain.Notification
		err   error
	)
	if p.UnreadOnly {
		items, err = g.notifier.GetUnread(ctx, c.UserID(), filter)
	} else {
		items, err = g.notifier.List(ctx, c.UserID(), filter)
	}
	if err != nil {
		return err
	}
	return c.Send(event.NotificationsListed(items))
}

func (g *Gateway) ping(ctx context.Context, c *Client, payload json.RawMessage) error {
	return c.Send(event.Outbound{Type: event.Pong, Payload: struct{}{}})
}
