package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Record_Delivered_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewReceiptRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	created, err := repository.RecordDelivered("m1", "bob", at)
	req.NoError(err)
	req.True(created)

	created, err = repository.RecordDelivered("m1", "bob", at.Add(time.Minute))
	req.NoError(err)
	req.False(created)

	delivered, err := repository.Delivered("m1")
	req.NoError(err)
	req.Len(delivered, 1)
	req.Contains(delivered, "bob")
}

func Test_Record_Read_Implies_Delivered(t *testing.T) {
	req := require.New(t)
	repository := NewReceiptRepository(openDB(t), slog.Default())

	// Given no delivery receipt
	// When bob reads the message
	created, err := repository.RecordRead("m1", "bob", time.Now())
	req.NoError(err)
	req.True(created)

	// Then a delivery receipt exists too
	delivered, err := repository.Delivered("m1")
	req.NoError(err)
	req.Contains(delivered, "bob")
	read, err := repository.Read("m1")
	req.NoError(err)
	req.Contains(read, "bob")

	created, err = repository.RecordRead("m1", "bob", time.Now())
	req.NoError(err)
	req.False(created)
}

func Test_Unread_Messages_Is_Set_Difference(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	messages := NewMessageRepository(db, slog.Default(), 0)
	receipts := NewReceiptRepository(db, slog.Default())
	at := time.Now().UTC()

	m1, err := messages.Append(newMessage("chat-1", "alice", "one", at))
	req.NoError(err)
	_, err = messages.Append(newMessage("chat-1", "alice", "two", at))
	req.NoError(err)
	// bob's own message never counts
	_, err = messages.Append(newMessage("chat-1", "bob", "mine", at))
	req.NoError(err)

	unread, err := receipts.UnreadMessages("bob", "chat-1")
	req.NoError(err)
	req.Len(unread, 2)

	_, err = receipts.RecordRead(m1.ID, "bob", at)
	req.NoError(err)
	unread, err = receipts.UnreadMessages("bob", "chat-1")
	req.NoError(err)
	req.Equal([]string{"two"}, contents(unread))
}

func Test_Concurrent_Reads_Keep_Unread_Consistent(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	messages := NewMessageRepository(db, slog.Default(), 0)
	receipts := NewReceiptRepository(db, slog.Default())
	at := time.Now().UTC()

	var ids []string
	for i := 0; i < 10; i++ {
		m, err := messages.Append(newMessage("chat-1", "alice", "x", at))
		req.NoError(err)
		ids = append(ids, m.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for k := 0; k < 3; k++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for {
					if _, err := receipts.RecordRead(id, "bob", at); err == nil {
						return
					}
				}
			}(id)
		}
	}
	wg.Wait()

	unread, err := receipts.UnreadMessages("bob", "chat-1")
	req.NoError(err)
	req.Empty(unread)
}
