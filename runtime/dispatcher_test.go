package runtime

import (
	"context"
	"courier/domain"
	"courier/errors"
	"courier/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDispatcher_Send_Waits_For_Reply(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockSendHandler(ctrl)
	dispatcher := NewDispatcher(slog.Default(), 4, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, w := range dispatcher.Workers(handler) {
		go func() { _ = w.Run(ctx) }()
	}

	// Given a handler that answers with the stored message
	handler.EXPECT().HandleSend(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, cmd domain.SendMessageCommand) {
			cmd.Reply <- domain.SendResult{Message: domain.Message{ID: "m1", ChatID: cmd.ChatID}}
		})

	// When a message is sent
	message, err := dispatcher.Send(ctx, domain.SendMessageCommand{ChatID: "c1", SenderID: "alice", Content: "hi"})

	// Then the caller gets the reply
	req.NoError(err)
	req.Equal("m1", message.ID)
	req.Equal("c1", message.ChatID)
}

func TestDispatcher_Same_Chat_Same_Shard(t *testing.T) {
	req := require.New(t)
	dispatcher := NewDispatcher(slog.Default(), 8, 1)

	for _, chatID := range []string{"a", "b", "c", "chat-42"} {
		req.Equal(dispatcher.shardFor(chatID), dispatcher.shardFor(chatID))
	}
}

func TestDispatcher_Full_Shard_Rejects(t *testing.T) {
	req := require.New(t)
	dispatcher := NewDispatcher(slog.Default(), 1, 1)
	ctx := context.Background()

	// Given no worker drains the only shard and its single slot is taken
	dispatcher.shards[0] <- domain.SendMessageCommand{ChatID: "c1"}

	// When another command arrives
	_, err := dispatcher.Send(ctx, domain.SendMessageCommand{ChatID: "c1"})

	// Then it is rejected at once
	req.ErrorIs(err, errors.ErrQueueFull)
}

func TestDispatcher_Caller_Gives_Up(t *testing.T) {
	req := require.New(t)
	dispatcher := NewDispatcher(slog.Default(), 1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nobody answers: the caller's deadline wins
	_, err := dispatcher.Send(ctx, domain.SendMessageCommand{ChatID: "c1"})
	req.ErrorIs(err, context.DeadlineExceeded)

	// The queued command carries the caller context so the shard can drop it
	cmd := <-dispatcher.shards[0]
	req.Error(cmd.Ctx.Err())
}
