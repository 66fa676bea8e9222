package runtime

import (
	"context"
	"courier/contract"
	"courier/domain/event"
	"courier/mocks"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingSink struct {
	mu     sync.Mutex
	id     string
	userID string
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
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) types() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]event.Type, 0, len(s.events))
	for _, e := range s.events {
		res = append(res, e.Type)
	}
	return res
}

func TestPresence_Two_Connections_Do_Not_Flap(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	presence := NewPresence(slog.Default(), users)
	ctx := context.Background()

	// Only the first connect and the last disconnect reach the store
	gomock.InOrder(
		users.EXPECT().SetPresence("bob", true, gomock.Any()).Return(nil),
		users.EXPECT().SetPresence("bob", false, gomock.Any()).Return(nil),
	)

	phone, laptop := newSink("bob"), newSink("bob")

	// Given bob connects twice
	req.True(presence.Register(ctx, phone))
	req.False(presence.Register(ctx, laptop))
	req.True(presence.IsOnline("bob"))

	// When one connection closes
	req.False(presence.Unregister(ctx, phone.ID()))

	// Then bob stays online
	req.True(presence.IsOnline("bob"))

	// When the second closes too
	req.True(presence.Unregister(ctx, laptop.ID()))
	req.False(presence.IsOnline("bob"))
	req.Empty(presence.ListOnline())
}

func TestPresence_Broadcasts_Online_And_Offline_To_Others(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(slog.Default(), nil)
	ctx := context.Background()
	alice, bob := newSink("alice"), newSink("bob")

	presence.Register(ctx, alice)
	presence.Register(ctx, bob)
	presence.Unregister(ctx, bob.ID())

	req.Equal([]event.Type{event.UserOnline, event.UserOffline}, alice.types())
	req.Empty(bob.types())
}

func TestPresence_Persist_Failure_Is_Not_Fatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	users.EXPECT().SetPresence(gomock.Any(), gomock.Any(), gomock.Any()).Return(fmt.Errorf("disk full")).AnyTimes()
	presence := NewPresence(slog.Default(), users)

	sink := newSink("bob")
	req.True(presence.Register(context.Background(), sink))
	req.True(presence.IsOnline("bob"))
}

func TestPresence_Rooms(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(slog.Default(), nil)
	ctx := context.Background()
	alice, bob, clara := newSink("alice"), newSink("bob"), newSink("clara")
	for _, s := range []*recordingSink{alice, bob, clara} {
		presence.Register(ctx, s)
	}

	// Given alice and bob opened chat-1
	presence.JoinRoom(alice.ID(), "chat-1")
	presence.JoinRoom(bob.ID(), "chat-1")
	presence.JoinRoom("unknown-connection", "chat-1")

	req.Len(presence.SinksForRoom("chat-1"), 2)

	// When bob leaves the room and alice disconnects
	presence.LeaveRoom(bob.ID(), "chat-1")
	presence.Unregister(ctx, alice.ID())

	// Then the room is empty
	req.Empty(presence.SinksForRoom("chat-1"))
	req.Len(presence.SinksForUser("clara"), 1)
	req.Equal([]string{"bob", "clara"}, presence.ListOnline())
}

func TestPresence_Concurrent_Register_Unregister(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(slog.Default(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sink := newSink(fmt.Sprintf("user-%d", i%5))
			presence.Register(ctx, sink)
			presence.JoinRoom(sink.ID(), "chat")
			presence.Unregister(ctx, sink.ID())
		}(i)
	}
	wg.Wait()

	req.Empty(presence.ListOnline())
	req.Empty(presence.SinksForRoom("chat"))
}

func TestPresence_Late_Online_Announcement_Is_Dropped(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(slog.Default(), nil)
	ctx := context.Background()
	bob := newSink("bob")
	presence.Register(ctx, bob)

	// Given alice came online and left again
	alice := newSink("alice")
	presence.Register(ctx, alice)
	presence.mu.RLock()
	online := presence.latest["alice"]
	presence.mu.RUnlock()
	presence.Unregister(ctx, alice.ID())
	req.Equal([]event.Type{event.UserOnline, event.UserOffline}, bob.types())

	// When the online transition is announced late
	presence.announce("alice", online, true, []contract.ConnectionSink{bob})

	// Then bob still sees alice offline
	req.Equal([]event.Type{event.UserOnline, event.UserOffline}, bob.types())
}

func TestPresence_Flapping_User_Ends_On_Last_Transition(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	var mu sync.Mutex
	var persisted []bool
	users.EXPECT().SetPresence("alice", gomock.Any(), gomock.Any()).
		Do(func(_ string, online bool, _ time.Time) {
			mu.Lock()
			defer mu.Unlock()
			persisted = append(persisted, online)
		}).Return(nil).AnyTimes()
	users.EXPECT().SetPresence("bob", gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	presence := NewPresence(slog.Default(), users)
	ctx := context.Background()
	bob := newSink("bob")
	presence.Register(ctx, bob)

	// When alice connects and disconnects from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := newSink("alice")
			presence.Register(ctx, sink)
			presence.Unregister(ctx, sink.ID())
		}()
	}
	wg.Wait()

	// Then bob and the store both end on offline
	req.False(presence.IsOnline("alice"))
	seen := bob.types()
	req.NotEmpty(seen)
	req.Equal(event.UserOffline, seen[len(seen)-1])
	mu.Lock()
	defer mu.Unlock()
	req.NotEmpty(persisted)
	req.False(persisted[len(persisted)-1])
}
