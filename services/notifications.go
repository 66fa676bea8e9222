package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/domain/event"
	"courier/errors"
	"courier/repositories"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const pushTimeout = 10 * time.Second

var _ contract.INotifier = (*NotificationService)(nil)

// NotificationService persists what could not be pushed live and replays it
// when the user comes back or polls.
type NotificationService struct {
	log           *slog.Logger
	repository    repositories.INotificationRepository
	subscriptions repositories.IPushRepository
	presence      contract.IPresence
	receipts      contract.IReceiptTracker
	publisher     contract.IStatusPublisher
	pusher        contract.WebPusher
	validate      *validator.Validate
	policy        RetryPolicy
	pending       sync.WaitGroup
	now           func() time.Time
}

func NewNotificationService(
	log *slog.Logger,
	repository repositories.INotificationRepository,
	subscriptions repositories.IPushRepository,
	presence contract.IPresence,
	receipts contract.IReceiptTracker,
	publisher contract.IStatusPublisher,
	pusher contract.WebPusher,
	policy RetryPolicy,
) *NotificationService {
	return &NotificationService{
		log:           log,
		repository:    repository,
		subscriptions: subscriptions,
		presence:      presence,
		receipts:      receipts,
		publisher:     publisher,
		pusher:        pusher,
		validate:      validator.New(),
		policy:        policy,
		now:           time.Now,
	}
}

// Enqueue persists a notification. Presence is checked again right before
// the write: a user who came back meanwhile also gets it live, and clients
// de-duplicate by id. Offline users get a best-effort web push.
func (s *NotificationService) Enqueue(ctx context.Context, userID string, draft domain.NotificationDraft) (domain.Notification, error) {
	if draft.Priority == "" {
		draft.Priority = domain.PriorityNormal
	}
	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      draft.Type,
		Priority:  draft.Priority,
		Payload:   draft.Payload,
		CreatedAt: s.now().UTC(),
	}
	online := s.presence.IsOnline(userID)
	if _, err := retry(ctx, s.policy, func() (struct{}, error) {
		return struct{}{}, s.repository.Put(notification)
	}); err != nil {
		return domain.Notification{}, err
	}

	if online {
		s.emit(userID, event.NotificationPushed(notification))
		s.pushCount(userID)
	} else {
		s.webPush(userID, notification)
	}
	return notification, nil
}

func (s *NotificationService) GetUnread(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	filter.UnreadOnly = true
	return s.repository.List(userID, filter)
}

// List is GetUnread without forcing the unread predicate.
func (s *NotificationService) List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	return s.repository.List(userID, filter)
}

// MarkRead acknowledges notifications and returns how many changed.
// Acknowledging a new_message notification is the client confirming the
// message reached it. The delivery receipt is written before the row is
// flagged read, so a failed write leaves it pending for the next ack.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, req domain.MarkReadRequest) (int, error) {
	if !req.All && len(req.IDs) == 0 {
		return 0, fmt.Errorf("%w: ids or all required", errors.ErrInvalidPayload)
	}
	delivered, err := s.confirmDelivery(ctx, userID, req)
	if err != nil {
		return 0, err
	}

	at := s.now()
	var changed []domain.Notification
	if req.All {
		changed, err = s.repository.MarkAllRead(userID, req.Filter, at)
	} else {
		changed, err = s.repository.MarkRead(userID, req.IDs, at)
	}
	if err != nil {
		return 0, err
	}
	for _, messageID := range delivered {
		s.publisher.Publish(ctx, messageID)
	}
	if len(changed) > 0 {
		s.pushCount(userID)
	}
	return len(changed), nil
}

// rejected tells a receipt the user may not hold apart from a failure to
// write it.
func rejected(err error) bool {
	return errors.Is(err, errors.ErrNotRecipient) ||
		errors.Is(err, errors.ErrMessageNotFound) ||
		errors.Is(err, errors.ErrChatNotFound)
}

// confirmDelivery writes the delivery receipts of the unread new_message
// notifications req selects and returns the messages that got a new one.
// Any failure other than a rejected receipt aborts the ack.
func (s *NotificationService) confirmDelivery(ctx context.Context, userID string, req domain.MarkReadRequest) ([]string, error) {
	filter := domain.NotificationFilter{}
	if req.All {
		filter = req.Filter
		filter.Limit, filter.Offset = 0, 0
	}
	filter.UnreadOnly = true
	pending, err := s.repository.List(userID, filter)
	if err != nil {
		return nil, err
	}
	if !req.All {
		pending = lo.Filter(pending, func(n domain.Notification, _ int) bool { return lo.Contains(req.IDs, n.ID) })
	}

	var delivered []string
	for _, n := range pending {
		if n.Type != domain.NotificationNewMessage || n.Payload.MessageID == "" {
			continue
		}
		result, err := s.receipts.RecordDelivered(ctx, n.Payload.MessageID, userID)
		if err != nil && !rejected(err) {
			return nil, err
		}
		if err != nil {
			s.log.Warn("Acknowledged notification without delivery receipt",
				"notification_id", n.ID, "message_id", n.Payload.MessageID, "user_id", userID, "error", err)
			continue
		}
		if result.Created {
			delivered = append(delivered, n.Payload.MessageID)
		}
	}
	return lo.Uniq(delivered), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repository.CountUnread(userID)
}

func (s *NotificationService) Subscribe(ctx context.Context, sub domain.PushSubscription) error {
	if err := s.validate.Struct(sub); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return s.subscriptions.Save(sub)
}

// Sweep deletes read notifications older than retention.
func (s *NotificationService) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	return s.repository.DeleteReadBefore(s.now().Add(-retention))
}

// Wait blocks until in-flight web pushes are done.
func (s *NotificationService) Wait() {
	s.pending.Wait()
}

func (s *NotificationService) pushCount(userID string) {
	count, err := s.repository.CountUnread(userID)
	if err != nil {
		s.log.Warn("Unable to count notifications", "user_id", userID, "error", err)
		return
	}
	s.emit(userID, event.NotificationCount(count))
}

func (s *NotificationService) emit(userID string, evt event.Outbound) {
	for _, sink := range s.presence.SinksForUser(userID) {
		if err := sink.Send(evt); err != nil {
			s.log.Debug("Notification not pushed", "connection_id", sink.ID(), "error", err)
		}
	}
}

type pushMessage struct {
	Title string                     `json:"title"`
	Body  string                     `json:"body"`
	Data  domain.NotificationPayload `json:"data"`
	ID    string                     `json:"notificationId"`
}

// webPush runs detached from the request: its failures are only logged.
func (s *NotificationService) webPush(userID string, n domain.Notification) {
	if s.pusher == nil || s.subscriptions == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		subs, err := s.subscriptions.ListForUser(userID)
		if err != nil {
			s.log.Warn("Unable to load push subscriptions", "user_id", userID, "error", err)
			return
		}
		if len(subs) == 0 {
			return
		}
		payload, err := json.Marshal(pushMessage{Title: pushTitle(n), Body: n.Payload.Preview, Data: n.Payload, ID: n.ID})
		if err != nil {
			s.log.Warn("Unable to encode push payload", "error", err)
			return
		}
		for _, sub := range subs {
			err := s.pusher.Push(ctx, sub, payload)
			switch {
			case errors.Is(err, errors.ErrPushGone):
				s.log.Info("Push subscription expired", "user_id", userID)
				if err := s.subscriptions.Delete(userID, sub.Endpoint); err != nil {
					s.log.Warn("Unable to delete push subscription", "user_id", userID, "error", err)
				}
			case err != nil:
				s.log.Warn("Web push failed", "user_id", userID, "error", err)
			}
		}
	}()
}

func pushTitle(n domain.Notification) string {
	switch n.Type {
	case domain.NotificationAddedToChat:
		return "You were added to a chat"
	default:
		return "New message"
	}
}
