package services

import (
	"context"
	"courier/domain"
	"courier/domain/event"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func statuses(sink *recordingSink) []domain.Status {
	var res []domain.Status
	for _, e := range sink.ofType(event.MessageStatusUpdate) {
		res = append(res, e.Payload.(event.StatusPayload).Status)
	}
	return res
}

func TestStatusPublisher_Emits_Only_Forward_Moves(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()
	chat, err := s.chatService.CreateGroup(ctx, "alice", "team", []string{"bob"})
	req.NoError(err)
	alice := s.connect(t, "alice")
	message := s.send(t, chat.ID, "alice", "hi")

	// Nothing to say while the message is only sent
	s.publisher.Publish(ctx, message.ID)
	req.Empty(statuses(alice))

	_, err = s.receipts.RecordDelivered(ctx, message.ID, "bob")
	req.NoError(err)
	s.publisher.Publish(ctx, message.ID)
	s.publisher.Publish(ctx, message.ID)
	req.Equal([]domain.Status{domain.StatusDelivered}, statuses(alice))

	_, err = s.receipts.RecordRead(ctx, message.ID, "bob")
	req.NoError(err)
	s.publisher.Publish(ctx, message.ID)
	req.Equal([]domain.Status{domain.StatusDelivered, domain.StatusRead}, statuses(alice))
}

func TestStatusPublisher_Late_Member_Does_Not_Pull_Status_Back(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()
	chat, err := s.chatService.CreateGroup(ctx, "alice", "team", []string{"bob"})
	req.NoError(err)
	message := s.send(t, chat.ID, "alice", "hi")
	_, err = s.receipts.RecordRead(ctx, message.ID, "bob")
	req.NoError(err)
	req.Equal(domain.StatusRead, s.status(t, message.ID))

	// When dave joins after the message was sent
	s.chatService.now = func() time.Time { return message.Timestamp.Add(time.Second) }
	req.NoError(s.chatService.AddMember(ctx, "alice", chat.ID, "dave"))

	// Then the message stays read, from every angle the sender can look
	req.Equal(domain.StatusRead, s.status(t, message.ID))
	status, err := s.chatService.MessageStatus(ctx, "alice", message.ID)
	req.NoError(err)
	req.Equal(domain.StatusRead, status)
	page, err := s.chatService.History(ctx, "alice", chat.ID, domain.PageRequest{Limit: 10})
	req.NoError(err)
	req.Len(page.Messages, 1)
	req.Equal(domain.StatusRead, page.Messages[0].Status)

	// And dave counts for what is sent after he joined
	s.store.now = func() time.Time { return message.Timestamp.Add(2 * time.Second) }
	later := s.send(t, chat.ID, "alice", "welcome dave")
	_, err = s.receipts.RecordRead(ctx, later.ID, "bob")
	req.NoError(err)
	req.Equal(domain.StatusSent, s.status(t, later.ID))
}

func TestStatusPublisher_Mark_Chat_Read_Notifies_Each_Sender(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()
	chat, err := s.chatService.CreatePrivate(ctx, "alice", "bob")
	req.NoError(err)
	alice := s.connect(t, "alice")
	s.send(t, chat.ID, "alice", "one")
	s.send(t, chat.ID, "alice", "two")

	changed, err := s.chatService.MarkChatRead(ctx, "bob", chat.ID)
	req.NoError(err)
	req.Len(changed, 2)
	req.Equal([]domain.Status{domain.StatusRead, domain.StatusRead}, statuses(alice))
}
