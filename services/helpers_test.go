package services

import (
	"context"
	"courier/domain"
	"courier/domain/event"
	"courier/errors"
	"courier/observability"
	"courier/repositories"
	"courier/runtime"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	id     string
	userID string
	fail   bool
	events []event.Outbound
}

func newSink(userID string) *recordingSink {
	return &recordingSink{id: uuid.NewString(), userID: userID}
}

func (s *recordingSink) ID() string     { return s.id }
func (s *recordingSink) UserID() string { return s.userID }

func (s *recordingSink) Send(evt event.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.ErrConnectionGone
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) ofType(t event.Type) []event.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []event.Outbound
	for _, e := range s.events {
		if e.Type == t {
			res = append(res, e)
		}
	}
	return res
}

// syncSender runs the engine inline, standing in for the shard dispatcher.
type syncSender struct {
	engine *DeliveryEngine
}

func (s syncSender) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	cmd.Ctx = ctx
	cmd.Reply = make(chan domain.SendResult, 1)
	s.engine.HandleSend(ctx, cmd)
	res := <-cmd.Reply
	return res.Message, res.Err
}

type stack struct {
	db            *badger.DB
	chats         *repositories.ChatRepository
	notifications repositories.NotificationRepository
	receiptRepo   repositories.ReceiptRepository
	presence      *runtime.Presence
	membership    *Membership
	store         *MessageStore
	receipts      *ReceiptTracker
	publisher     *StatusPublisher
	notifier      *NotificationService
	engine        *DeliveryEngine
	chatService   *ChatService
	activity      chan domain.ActivityUpdate
	stats         *observability.MonitoringManager
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	policy := RetryPolicy{MaxRetries: 3, Initial: time.Millisecond}
	s := &stack{db: db, activity: make(chan domain.ActivityUpdate, 16), stats: observability.NewMonitoringManager(log)}
	s.chats = repositories.NewChatRepository(db, log)
	s.notifications = repositories.NewNotificationRepository(db, log)
	s.receiptRepo = repositories.NewReceiptRepository(db, log)
	s.presence = runtime.NewPresence(log, repositories.NewUserRepository(db))
	s.membership = NewMembership(log, s.chats)
	s.store, err = NewMessageStore(log, repositories.NewMessageRepository(db, log, 50), s.membership, policy, 4096)
	require.NoError(t, err)
	t.Cleanup(s.store.Close)
	s.receipts = NewReceiptTracker(log, s.receiptRepo, s.store, s.membership, policy)
	s.publisher = NewStatusPublisher(log, s.receipts, s.store, s.presence)
	s.notifier = NewNotificationService(log, s.notifications, repositories.NewPushRepository(db), s.presence, s.receipts, s.publisher, nil, policy)
	s.engine = NewDeliveryEngine(log, s.store, s.membership, s.presence, s.receipts, s.notifier, s.publisher, s.chats, s.activity, s.stats)
	s.chatService = NewChatService(log, s.chats, s.membership, s.store, s.receipts, s.publisher, s.notifier, syncSender{engine: s.engine})
	return s
}

func (s *stack) connect(t *testing.T, userID string) *recordingSink {
	t.Helper()
	sink := newSink(userID)
	s.presence.Register(context.Background(), sink)
	return sink
}

func (s *stack) send(t *testing.T, chatID, senderID, content string) domain.Message {
	t.Helper()
	message, err := s.chatService.PostMessage(context.Background(), domain.SendMessageCommand{
		ChatID: chatID, SenderID: senderID, Content: content, Type: domain.TextMessage,
	})
	require.NoError(t, err)
	return message
}

func (s *stack) status(t *testing.T, messageID string) domain.Status {
	t.Helper()
	status, err := s.receipts.AggregateStatus(context.Background(), messageID)
	require.NoError(t, err)
	return status
}
