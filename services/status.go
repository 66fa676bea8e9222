package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/domain/event"
	"hash/fnv"
	"log/slog"
	"sync"
)

const statusStripes = 64

var _ contract.IStatusPublisher = (*StatusPublisher)(nil)

// StatusPublisher tells a sender when the aggregate status of one of their
// messages moves forward. Publishes for the same message are serialized on
// a lock stripe, so a stale evaluation can never be emitted after a newer one.
type StatusPublisher struct {
	log      *slog.Logger
	receipts contract.IReceiptTracker
	messages contract.IMessageStore
	presence contract.IPresence
	stripes  [statusStripes]sync.Mutex
	mu       sync.Mutex
	emitted  map[string]domain.Status
}

func NewStatusPublisher(
	log *slog.Logger,
	receipts contract.IReceiptTracker,
	messages contract.IMessageStore,
	presence contract.IPresence,
) *StatusPublisher {
	return &StatusPublisher{
		log:      log,
		receipts: receipts,
		messages: messages,
		presence: presence,
		emitted:  make(map[string]domain.Status),
	}
}

func (p *StatusPublisher) stripe(messageID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(messageID))
	return &p.stripes[h.Sum32()%statusStripes]
}

// Publish recomputes the aggregate and emits message_status_update to the
// sender's connections when it is ahead of what was last emitted. A message
// starts at sent, which is never emitted on its own. Read is final, its
// entry is dropped once emitted.
func (p *StatusPublisher) Publish(ctx context.Context, messageID string) {
	lock := p.stripe(messageID)
	lock.Lock()
	defer lock.Unlock()

	message, err := p.messages.Get(ctx, messageID)
	if err != nil {
		p.log.Warn("Unable to load message for status", "message_id", messageID, "error", err)
		return
	}
	status, err := p.receipts.AggregateStatus(ctx, messageID)
	if err != nil {
		p.log.Warn("Unable to compute status", "message_id", messageID, "error", err)
		return
	}

	p.mu.Lock()
	last, ok := p.emitted[messageID]
	if !ok {
		last = domain.StatusSent
	}
	advanced := status.After(last)
	switch {
	case advanced && status == domain.StatusRead:
		delete(p.emitted, messageID)
	case advanced:
		p.emitted[messageID] = status
	}
	p.mu.Unlock()

	if !advanced {
		return
	}
	p.log.Debug("Status advanced", "message_id", messageID, "status", status)
	evt := event.StatusUpdateEvent(messageID, message.ChatID, status)
	for _, sink := range p.presence.SinksForUser(message.SenderID) {
		if err := sink.Send(evt); err != nil {
			p.log.Debug("Status update not pushed", "connection_id", sink.ID(), "error", err)
		}
	}
}
