package runtime

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"courier/runtime/workers"
	"hash/fnv"
	"log/slog"
	"time"
)

var _ contract.MessageSender = (*Dispatcher)(nil)

// Dispatcher routes send commands to delivery shards. A chat always maps to
// the same shard and a shard handles one command at a time, which keeps
// append order and fan-out order identical for every recipient of a chat.
// Chats on different shards proceed in parallel.
type Dispatcher struct {
	log    *slog.Logger
	shards []chan domain.SendMessageCommand
	now    func() time.Time
}

func NewDispatcher(log *slog.Logger, numShards, bufferSize int) *Dispatcher {
	if numShards <= 0 {
		numShards = 1
	}
	shards := make([]chan domain.SendMessageCommand, numShards)
	for i := range shards {
		shards[i] = make(chan domain.SendMessageCommand, bufferSize)
	}
	return &Dispatcher{log: log, shards: shards, now: time.Now}
}

// Workers builds one shard worker per shard, ready for the supervisor.
func (d *Dispatcher) Workers(handler contract.SendHandler) []contract.Worker {
	res := make([]contract.Worker, 0, len(d.shards))
	for i, shard := range d.shards {
		res = append(res, workers.NewShardWorker(i, shard, handler, d.log))
	}
	return res
}

func (d *Dispatcher) shardFor(chatID string) chan domain.SendMessageCommand {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return d.shards[h.Sum32()%uint32(len(d.shards))]
}

// Send queues the command on its shard and waits until the message is
// durable. A full shard rejects the command instead of blocking the caller.
func (d *Dispatcher) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	cmd.Ctx = ctx
	cmd.Reply = make(chan domain.SendResult, 1)
	if cmd.SentAt.IsZero() {
		cmd.SentAt = d.now()
	}
	select {
	case d.shardFor(cmd.ChatID) <- cmd:
	default:
		d.log.Warn("Delivery shard full, dropping command", "chat_id", cmd.ChatID, "user_id", cmd.SenderID)
		return domain.Message{}, errors.ErrQueueFull
	}
	select {
	case res := <-cmd.Reply:
		return res.Message, res.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}
