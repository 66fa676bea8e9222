package services

import (
	"context"
	"courier/domain"
	"courier/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestMembership_Roles_And_Invalidation(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	chats := repositories.NewChatRepository(db, slog.Default())
	membership := NewMembership(slog.Default(), chats)
	ctx := context.Background()
	at := time.Now().UTC()

	req.NoError(chats.CreateChat(domain.Chat{ID: "g1", Type: domain.GroupChat}, []domain.ChatMember{
		{ChatID: "g1", UserID: "alice", Role: domain.RoleAdmin, JoinedAt: at},
		{ChatID: "g1", UserID: "bob", Role: domain.RoleMember, JoinedAt: at},
	}))

	role, err := membership.Role(ctx, "g1", "alice")
	req.NoError(err)
	req.Equal(domain.RoleAdmin, role)
	role, err = membership.Role(ctx, "g1", "clara")
	req.NoError(err)
	req.Equal(domain.RoleNone, role)
	role, err = membership.Role(ctx, "unknown", "alice")
	req.NoError(err)
	req.Equal(domain.RoleNone, role)

	// A write behind the cache is invisible until invalidated
	req.NoError(chats.AddMember(domain.ChatMember{ChatID: "g1", UserID: "clara", Role: domain.RoleMember, JoinedAt: at}))
	member, err := membership.IsMember(ctx, "g1", "clara")
	req.NoError(err)
	req.False(member)

	membership.Invalidate("g1")
	member, err = membership.IsMember(ctx, "g1", "clara")
	req.NoError(err)
	req.True(member)
}
