package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/domain/event"
	"courier/errors"
	"courier/observability"
	"courier/repositories"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

var _ contract.SendHandler = (*DeliveryEngine)(nil)

// DeliveryEngine appends a message and fans it out. It runs inside a
// delivery shard, one command at a time per chat, so recipients observe
// new_message events in append order.
type DeliveryEngine struct {
	log        *slog.Logger
	store      contract.IMessageStore
	membership contract.IMembership
	presence   contract.IPresence
	receipts   contract.IReceiptTracker
	notifier   contract.INotifier
	publisher  contract.IStatusPublisher
	chats      repositories.IChatRepository
	activity   chan<- domain.ActivityUpdate
	stats      *observability.MonitoringManager
}

func NewDeliveryEngine(
	log *slog.Logger,
	store contract.IMessageStore,
	membership contract.IMembership,
	presence contract.IPresence,
	receipts contract.IReceiptTracker,
	notifier contract.INotifier,
	publisher contract.IStatusPublisher,
	chats repositories.IChatRepository,
	activity chan<- domain.ActivityUpdate,
	stats *observability.MonitoringManager,
) *DeliveryEngine {
	return &DeliveryEngine{
		log:        log,
		store:      store,
		membership: membership,
		presence:   presence,
		receipts:   receipts,
		notifier:   notifier,
		publisher:  publisher,
		chats:      chats,
		activity:   activity,
		stats:      stats,
	}
}

// HandleSend appends the message, answers the caller as soon as it is
// durable, then fans it out. A caller that gave up before the append
// started is dropped without writing anything.
func (d *DeliveryEngine) HandleSend(ctx context.Context, cmd domain.SendMessageCommand) {
	if cmd.Ctx != nil && cmd.Ctx.Err() != nil {
		d.log.Debug("Send dropped, caller gone", "chat_id", cmd.ChatID, "user_id", cmd.SenderID)
		reply(cmd, domain.SendResult{Err: cmd.Ctx.Err()})
		return
	}
	message, err := d.store.Append(ctx, cmd.ChatID, cmd.SenderID, cmd.Content, cmd.Type)
	reply(cmd, domain.SendResult{Message: message, Err: err})
	if err != nil {
		return
	}
	d.stats.IncrMessagesAppended()
	d.FanOut(ctx, message)
}

func reply(cmd domain.SendMessageCommand, res domain.SendResult) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- res:
	default:
	}
}

// FanOut delivers one appended message to every other member. Each
// recipient is handled on its own: a failure for one never stops the rest.
// Online recipients get the push and a delivery receipt at once; offline
// ones, and those whose every push failed, get a notification and no
// receipt until they acknowledge it.
func (d *DeliveryEngine) FanOut(ctx context.Context, message domain.Message) {
	members, err := d.membership.Members(ctx, message.ChatID)
	if err != nil {
		d.log.Error("Fan-out aborted, members unavailable", "chat_id", message.ChatID, "message_id", message.ID, "error", err)
		return
	}
	recipients := lo.Without(members, message.SenderID)
	chatType := d.chatType(message.ChatID)
	evt := event.NewMessageEvent(message)

	var failures *multierror.Error
	delivered := false
	for _, recipient := range recipients {
		if d.pushLive(recipient, evt) {
			d.stats.IncrPushedLive()
			result, err := d.receipts.RecordDelivered(ctx, message.ID, recipient)
			if err != nil {
				failures = multierror.Append(failures, fmt.Errorf("receipt for %s: %w", recipient, err))
				continue
			}
			if result.Created {
				d.stats.IncrReceiptsWritten()
				delivered = true
			}
			continue
		}
		d.stats.IncrRoutedOffline()
		if _, err := d.notifier.Enqueue(ctx, recipient, newMessageDraft(message, chatType)); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("notification for %s: %w", recipient, err))
		}
	}

	// Echo to the sender's other tabs and devices.
	d.pushLive(message.SenderID, evt)

	if err := failures.ErrorOrNil(); err != nil {
		d.log.Warn("Fan-out finished with failures", "message_id", message.ID, "chat_id", message.ChatID, "error", err)
	}
	if delivered || len(recipients) == 0 {
		d.publisher.Publish(ctx, message.ID)
	}
	d.touch(message)
}

// pushLive reports whether at least one connection of userID took the event.
func (d *DeliveryEngine) pushLive(userID string, evt event.Outbound) bool {
	if !d.presence.IsOnline(userID) {
		return false
	}
	pushed := false
	for _, sink := range d.presence.SinksForUser(userID) {
		if err := sink.Send(evt); err != nil {
			d.stats.IncrPushFailures()
			d.log.Debug("Push failed", "user_id", userID, "connection_id", sink.ID(), "error", err)
			continue
		}
		pushed = true
	}
	return pushed
}

func (d *DeliveryEngine) chatType(chatID string) domain.ChatType {
	chat, err := d.chats.GetChat(chatID)
	if err != nil {
		if !errors.Is(err, errors.ErrChatNotFound) {
			d.log.Warn("Unable to load chat", "chat_id", chatID, "error", err)
		}
		return domain.GroupChat
	}
	return chat.Type
}

// touch hands lastActivity to the activity worker. It never blocks the
// shard: when the buffer is full the update is dropped and the next message
// of the chat catches up.
func (d *DeliveryEngine) touch(message domain.Message) {
	if d.activity == nil {
		return
	}
	update := domain.ActivityUpdate{
		ChatID:    message.ChatID,
		MessageID: message.ID,
		Preview:   message.Preview(),
		At:        message.Timestamp,
	}
	select {
	case d.activity <- update:
	default:
		d.stats.IncrActivityDropped()
		d.log.Warn("Activity channel full, dropping update", "chat_id", message.ChatID)
	}
}

func newMessageDraft(message domain.Message, chatType domain.ChatType) domain.NotificationDraft {
	priority := domain.PriorityMedium
	if chatType == domain.PrivateChat {
		priority = domain.PriorityHigh
	}
	return domain.NotificationDraft{
		Type:     domain.NotificationNewMessage,
		Priority: priority,
		Payload: domain.NotificationPayload{
			ChatID:    message.ChatID,
			MessageID: message.ID,
			SenderID:  message.SenderID,
			Preview:   message.Preview(),
			ChatType:  chatType,
			Kind:      message.Type,
		},
	}
}
