package repositories

import (
	"courier/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func notification(id, user string, priority domain.Priority, chatID string, at time.Time) domain.Notification {
	return domain.Notification{
		ID:        id,
		UserID:    user,
		Type:      domain.NotificationNewMessage,
		Priority:  priority,
		Payload:   domain.NotificationPayload{ChatID: chatID, MessageID: "msg-" + id},
		CreatedAt: at,
	}
}

func Test_List_Orders_By_Priority_Then_Recency(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	for _, n := range []domain.Notification{
		notification("low-new", "bob", domain.PriorityLow, "c1", at.Add(3*time.Second)),
		notification("normal-old", "bob", domain.PriorityNormal, "c1", at),
		notification("high-old", "bob", domain.PriorityHigh, "c1", at),
		notification("medium", "bob", domain.PriorityMedium, "c2", at.Add(time.Second)),
		notification("high-new", "bob", domain.PriorityHigh, "c2", at.Add(2*time.Second)),
		notification("other-user", "alice", domain.PriorityHigh, "c1", at),
	} {
		req.NoError(repository.Put(n))
	}

	listed, err := repository.List("bob", domain.NotificationFilter{})
	req.NoError(err)
	req.Equal([]string{"high-new", "high-old", "medium", "low-new", "normal-old"}, ids(listed))

	paged, err := repository.List("bob", domain.NotificationFilter{Limit: 2, Offset: 1})
	req.NoError(err)
	req.Equal([]string{"high-old", "medium"}, ids(paged))

	inChat, err := repository.List("bob", domain.NotificationFilter{ChatID: "c2"})
	req.NoError(err)
	req.Equal([]string{"high-new", "medium"}, ids(inChat))

	recent, err := repository.List("bob", domain.NotificationFilter{Since: at.Add(time.Second)})
	req.NoError(err)
	req.ElementsMatch([]string{"high-new", "medium", "low-new"}, ids(recent))
}

func Test_Mark_Read_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.Put(notification("n1", "bob", domain.PriorityHigh, "c1", at)))
	req.NoError(repository.Put(notification("n2", "bob", domain.PriorityHigh, "c1", at)))

	changed, err := repository.MarkRead("bob", []string{"n1", "n1", "unknown"}, at)
	req.NoError(err)
	req.Equal([]string{"n1"}, ids(changed))

	changed, err = repository.MarkRead("bob", []string{"n1"}, at)
	req.NoError(err)
	req.Empty(changed)

	count, err := repository.CountUnread("bob")
	req.NoError(err)
	req.Equal(1, count)

	unread, err := repository.List("bob", domain.NotificationFilter{UnreadOnly: true})
	req.NoError(err)
	req.Equal([]string{"n2"}, ids(unread))
}

func Test_Mark_All_Read_With_Filter(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.Put(notification("n1", "bob", domain.PriorityHigh, "c1", at)))
	req.NoError(repository.Put(notification("n2", "bob", domain.PriorityHigh, "c2", at)))

	changed, err := repository.MarkAllRead("bob", domain.NotificationFilter{ChatID: "c1", Limit: 1, Offset: 5}, at)
	req.NoError(err)
	req.Equal([]string{"n1"}, ids(changed))
	req.True(changed[0].IsRead)
	req.NotNil(changed[0].ReadAt)

	count, err := repository.CountUnread("bob")
	req.NoError(err)
	req.Equal(1, count)
}

func Test_Delete_Read_Before_Cutoff(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openDB(t), slog.Default())
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	req.NoError(repository.Put(notification("old-read", "bob", domain.PriorityHigh, "c1", old)))
	req.NoError(repository.Put(notification("old-unread", "bob", domain.PriorityHigh, "c1", old)))
	req.NoError(repository.Put(notification("new-read", "alice", domain.PriorityHigh, "c1", now)))
	_, err := repository.MarkRead("bob", []string{"old-read"}, now)
	req.NoError(err)
	_, err = repository.MarkRead("alice", []string{"new-read"}, now)
	req.NoError(err)

	deleted, err := repository.DeleteReadBefore(now.Add(-24 * time.Hour))
	req.NoError(err)
	req.Equal(1, deleted)

	left, err := repository.List("bob", domain.NotificationFilter{})
	req.NoError(err)
	req.Equal([]string{"old-unread"}, ids(left))
}

func ids(notifications []domain.Notification) []string {
	res := make([]string, 0, len(notifications))
	for _, n := range notifications {
		res = append(res, n.ID)
	}
	return res
}
