package workers

import (
	"context"
	"courier/domain"
	"courier/errors"
	"courier/mocks"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestShardWorker_Handles_Commands_In_Order(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockSendHandler(ctrl)
	commands := make(chan domain.SendMessageCommand, 3)

	var mu sync.Mutex
	var seen []string
	handler.EXPECT().HandleSend(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd domain.SendMessageCommand) {
			mu.Lock()
			seen = append(seen, cmd.Content)
			mu.Unlock()
		}).Times(3)

	for _, c := range []string{"a", "b", "c"} {
		commands <- domain.SendMessageCommand{ChatID: "chat", Content: c}
	}
	close(commands)

	err := NewShardWorker(0, commands, handler, slog.Default()).Run(context.Background())
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"}, seen)
}

type fakeActivityStore struct {
	mu      sync.Mutex
	updates []domain.ActivityUpdate
	err     error
}

func (f *fakeActivityStore) TouchActivity(update domain.ActivityUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return f.err
}

func TestActivityWorker_Applies_Updates_And_Survives_Errors(t *testing.T) {
	req := require.New(t)
	store := &fakeActivityStore{err: errors.ErrTransientStore}
	updates := make(chan domain.ActivityUpdate, 2)
	updates <- domain.ActivityUpdate{ChatID: "c1"}
	updates <- domain.ActivityUpdate{ChatID: "c2"}
	close(updates)

	err := NewActivityWorker(slog.Default(), updates, store).Run(context.Background())
	req.NoError(err)
	req.Len(store.updates, 2)
}

type fakeSweeper struct {
	calls chan time.Duration
}

func (f fakeSweeper) Sweep(_ context.Context, retention time.Duration) (int, error) {
	f.calls <- retention
	return 1, nil
}

func TestSweeperWorker_Sweeps_On_Tick(t *testing.T) {
	req := require.New(t)
	sweeper := fakeSweeper{calls: make(chan time.Duration, 10)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = NewSweeperWorker(slog.Default(), sweeper, 10*time.Millisecond, time.Hour).Run(ctx)
	}()

	select {
	case retention := <-sweeper.calls:
		req.Equal(time.Hour, retention)
	case <-time.After(time.Second):
		req.Fail("sweep never ran")
	}
}
