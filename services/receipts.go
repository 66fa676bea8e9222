package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"courier/repositories"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

var _ contract.IReceiptTracker = (*ReceiptTracker)(nil)

// ReceiptTracker owns per-recipient delivery and read receipts. The
// aggregate status and unread counts are always derived from them.
type ReceiptTracker struct {
	log        *slog.Logger
	repository repositories.IReceiptRepository
	messages   contract.IMessageStore
	membership contract.IMembership
	policy     RetryPolicy
	now        func() time.Time
}

func NewReceiptTracker(
	log *slog.Logger,
	repository repositories.IReceiptRepository,
	messages contract.IMessageStore,
	membership contract.IMembership,
	policy RetryPolicy,
) *ReceiptTracker {
	return &ReceiptTracker{
		log:        log,
		repository: repository,
		messages:   messages,
		membership: membership,
		policy:     policy,
		now:        time.Now,
	}
}

// recipient loads the message and checks userID may hold a receipt for it:
// a member of the chat other than the sender.
func (r *ReceiptTracker) recipient(ctx context.Context, messageID, userID string) (domain.Message, error) {
	message, err := r.messages.Get(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.SenderID == userID {
		return domain.Message{}, fmt.Errorf("%w: %s sent %s", errors.ErrNotRecipient, userID, messageID)
	}
	member, err := r.membership.IsMember(ctx, message.ChatID, userID)
	if err != nil {
		return domain.Message{}, err
	}
	if !member {
		return domain.Message{}, fmt.Errorf("%w: %s not in %s", errors.ErrNotRecipient, userID, message.ChatID)
	}
	return message, nil
}

func (r *ReceiptTracker) RecordDelivered(ctx context.Context, messageID, userID string) (domain.ReceiptResult, error) {
	if _, err := r.recipient(ctx, messageID, userID); err != nil {
		r.log.Debug("Delivery receipt rejected", "message_id", messageID, "user_id", userID, "error", err)
		return domain.ReceiptResult{}, err
	}
	at := r.now()
	created, err := retry(ctx, r.policy, func() (bool, error) {
		return r.repository.RecordDelivered(messageID, userID, at)
	})
	if err != nil {
		return domain.ReceiptResult{}, err
	}
	return domain.ReceiptResult{MessageID: messageID, Created: created}, nil
}

// RecordRead also records delivery at the same instant when it is missing.
func (r *ReceiptTracker) RecordRead(ctx context.Context, messageID, userID string) (domain.ReceiptResult, error) {
	if _, err := r.recipient(ctx, messageID, userID); err != nil {
		r.log.Debug("Read receipt rejected", "message_id", messageID, "user_id", userID, "error", err)
		return domain.ReceiptResult{}, err
	}
	at := r.now()
	created, err := retry(ctx, r.policy, func() (bool, error) {
		return r.repository.RecordRead(messageID, userID, at)
	})
	if err != nil {
		return domain.ReceiptResult{}, err
	}
	return domain.ReceiptResult{MessageID: messageID, Created: created}, nil
}

// MarkChatRead reads every message of the chat userID has not read yet and
// returns the ids that got a new read receipt.
func (r *ReceiptTracker) MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error) {
	if err := r.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	unread, err := r.repository.UnreadMessages(userID, chatID)
	if err != nil {
		return nil, err
	}
	at := r.now()
	var changed []string
	for _, message := range unread {
		created, err := retry(ctx, r.policy, func() (bool, error) {
			return r.repository.RecordRead(message.ID, userID, at)
		})
		if err != nil {
			return changed, err
		}
		if created {
			changed = append(changed, message.ID)
		}
	}
	return changed, nil
}

// AggregateStatus evaluates the receipts against the members who had
// joined the chat when the message was sent, minus the sender. Later
// joiners never pull an emitted status back.
func (r *ReceiptTracker) AggregateStatus(ctx context.Context, messageID string) (domain.Status, error) {
	message, err := r.messages.Get(ctx, messageID)
	if err != nil {
		return "", err
	}
	members, err := r.membership.MembersAt(ctx, message.ChatID, message.Timestamp)
	if err != nil {
		return "", err
	}
	recipients := lo.Without(members, message.SenderID)
	delivered, err := r.repository.Delivered(messageID)
	if err != nil {
		return "", err
	}
	read, err := r.repository.Read(messageID)
	if err != nil {
		return "", err
	}
	return domain.Aggregate(recipients, delivered, read), nil
}

// UnreadCount is computed by set difference at query time, never kept as a
// counter.
func (r *ReceiptTracker) UnreadCount(ctx context.Context, userID, chatID string) (int, error) {
	if err := r.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}
	unread, err := r.repository.UnreadMessages(userID, chatID)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

func (r *ReceiptTracker) requireMember(ctx context.Context, chatID, userID string) error {
	member, err := r.membership.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: %s in %s", errors.ErrNotMember, userID, chatID)
	}
	return nil
}
