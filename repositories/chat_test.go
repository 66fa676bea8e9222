package repositories

import (
	"courier/domain"
	"courier/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func members(chatID string, at time.Time, admin string, users ...string) []domain.ChatMember {
	res := []domain.ChatMember{{ChatID: chatID, UserID: admin, Role: domain.RoleAdmin, JoinedAt: at}}
	for _, u := range users {
		res = append(res, domain.ChatMember{ChatID: chatID, UserID: u, Role: domain.RoleMember, JoinedAt: at})
	}
	return res
}

func Test_Create_Group_And_List_Members(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	chat := domain.Chat{ID: "g1", Type: domain.GroupChat, Name: "team", CreatedBy: "alice", CreatedAt: at, LastActivity: at}

	req.NoError(repository.CreateChat(chat, members("g1", at, "alice", "bob", "clara")))

	got, err := repository.Members("g1")
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob", "clara"}, MemberIDs(got))

	fetched, err := repository.GetChat("g1")
	req.NoError(err)
	req.Equal("team", fetched.Name)
	req.Equal(domain.GroupChat, fetched.Type)
}

func Test_Create_Private_Is_Idempotent_Per_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	first, created, err := repository.CreatePrivate(
		domain.Chat{ID: "p1", Type: domain.PrivateChat, CreatedBy: "alice", CreatedAt: at},
		members("p1", at, "alice", "bob"))
	req.NoError(err)
	req.True(created)

	// When bob opens the same conversation the other way round
	second, created, err := repository.CreatePrivate(
		domain.Chat{ID: "p2", Type: domain.PrivateChat, CreatedBy: "bob", CreatedAt: at},
		members("p2", at, "bob", "alice"))
	req.NoError(err)

	// Then the first chat is returned
	req.False(created)
	req.Equal(first.ID, second.ID)

	_, err = repository.GetChat("p2")
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func Test_Add_And_Remove_Member(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.CreateChat(domain.Chat{ID: "g1", Type: domain.GroupChat}, members("g1", at, "alice")))

	req.NoError(repository.AddMember(domain.ChatMember{ChatID: "g1", UserID: "bob", Role: domain.RoleMember, JoinedAt: at}))
	chats, err := repository.ChatsForUser("bob")
	req.NoError(err)
	req.Len(chats, 1)

	req.NoError(repository.RemoveMember("g1", "bob"))
	got, err := repository.Members("g1")
	req.NoError(err)
	req.Equal([]string{"alice"}, MemberIDs(got))
	chats, err = repository.ChatsForUser("bob")
	req.NoError(err)
	req.Empty(chats)

	err = repository.AddMember(domain.ChatMember{ChatID: "missing", UserID: "bob"})
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func Test_Members_Of_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())

	_, err := repository.Members("missing")
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func Test_Touch_Activity_Only_Moves_Forward(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.CreateChat(domain.Chat{ID: "g1", Type: domain.GroupChat, LastActivity: at}, members("g1", at, "alice")))

	req.NoError(repository.TouchActivity(domain.ActivityUpdate{ChatID: "g1", MessageID: "m2", Preview: "later", At: at.Add(2 * time.Second)}))
	// An older update arriving late is ignored
	req.NoError(repository.TouchActivity(domain.ActivityUpdate{ChatID: "g1", MessageID: "m1", Preview: "earlier", At: at.Add(time.Second)}))

	chat, err := repository.GetChat("g1")
	req.NoError(err)
	req.Equal("m2", chat.LastMessageID)
	req.Equal("later", chat.LastMessagePreview)
}

func Test_Chats_For_User_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.CreateChat(domain.Chat{ID: "a", LastActivity: at}, members("a", at, "alice")))
	req.NoError(repository.CreateChat(domain.Chat{ID: "b", LastActivity: at.Add(time.Minute)}, members("b", at, "alice")))
	req.NoError(repository.CreateChat(domain.Chat{ID: "c", LastActivity: at.Add(-time.Minute)}, members("c", at, "alice")))

	chats, err := repository.ChatsForUser("alice")
	req.NoError(err)
	req.Equal([]string{"b", "a", "c"}, []string{chats[0].ID, chats[1].ID, chats[2].ID})
}
