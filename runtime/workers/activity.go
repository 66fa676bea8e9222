package workers

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"log/slog"
)

var _ contract.Worker = (*ActivityWorker)(nil)

// ActivityStore moves a chat's lastActivity forward.
type ActivityStore interface {
	TouchActivity(update domain.ActivityUpdate) error
}

// ActivityWorker applies lastActivity and preview updates off the delivery
// path. Chat lists may lag the log by the depth of the channel.
type ActivityWorker struct {
	log     *slog.Logger
	updates <-chan domain.ActivityUpdate
	store   ActivityStore
}

func NewActivityWorker(log *slog.Logger, updates <-chan domain.ActivityUpdate, store ActivityStore) *ActivityWorker {
	return &ActivityWorker{log: log, updates: updates, store: store}
}

func (w *ActivityWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-w.updates:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			err := w.store.TouchActivity(update)
			switch {
			case errors.Is(err, errors.ErrChatNotFound):
				w.log.Debug("Activity for unknown chat", "chat_id", update.ChatID)
			case err != nil:
				w.log.Warn("Unable to update chat activity", "chat_id", update.ChatID, "error", err)
			}
		}
	}
}
