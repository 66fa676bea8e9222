package workers

import (
	"context"
	"courier/contract"
	"courier/domain"
	"log/slog"
)

// Ensure *ShardWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*ShardWorker)(nil)

// ShardWorker drains one delivery shard sequentially.
type ShardWorker struct {
	index    int
	commands <-chan domain.SendMessageCommand
	handler  contract.SendHandler
	log      *slog.Logger
}

func NewShardWorker(
	index int,
	commands <-chan domain.SendMessageCommand,
	handler contract.SendHandler,
	log *slog.Logger) *ShardWorker {
	return &ShardWorker{
		index:    index,
		commands: commands,
		handler:  handler,
		log:      log.With("shard", index),
	}
}

func (w *ShardWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.handler.HandleSend(ctx, cmd)
		}
	}
}
