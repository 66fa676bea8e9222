package repositories

import (
	"courier/domain"
	"courier/errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newMessage(chatID, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  sender,
		Content:   content,
		Type:      domain.TextMessage,
		Timestamp: at,
	}
}

func Test_Append_Assigns_Increasing_Sequence(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)
	at := time.Now().UTC()

	// Given three messages appended to the same chat
	var appended []domain.Message
	for i, author := range []string{"alice", "bob", "clara"} {
		m, err := repository.Append(newMessage("chat-1", author, "hello", at.Add(time.Duration(i)*time.Second)))
		req.NoError(err)
		appended = append(appended, m)
	}

	// Then sequences follow append order
	req.Equal(uint64(1), appended[0].Seq)
	req.Equal(uint64(2), appended[1].Seq)
	req.Equal(uint64(3), appended[2].Seq)

	// And each chat owns its own counter
	other, err := repository.Append(newMessage("chat-2", "alice", "hi", at))
	req.NoError(err)
	req.Equal(uint64(1), other.Seq)
}

func Test_Get_Message_By_ID(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)
	at := time.Now().UTC()

	stored, err := repository.Append(newMessage("chat-1", "alice", "hello", at))
	req.NoError(err)

	fetched, err := repository.Get(stored.ID)
	req.NoError(err)
	req.Equal(stored.ID, fetched.ID)
	req.Equal("hello", fetched.Content)
	req.True(at.Equal(fetched.Timestamp))

	_, err = repository.Get("unknown")
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_List_Newest_First_With_Cursor(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := repository.Append(newMessage("chat-1", "alice", fmt.Sprintf("m%d", i), at.Add(time.Duration(i)*time.Second)))
		req.NoError(err)
	}
	_, err := repository.Append(newMessage("chat-2", "alice", "noise", at))
	req.NoError(err)

	// When the first page of two is read
	first, err := repository.List("chat-1", domain.PageRequest{Limit: 2})
	req.NoError(err)
	req.Equal([]string{"m4", "m3"}, contents(first.Messages))
	req.NotEmpty(first.Cursor)

	// Then the cursor continues below it
	second, err := repository.List("chat-1", domain.PageRequest{Limit: 2, Cursor: first.Cursor})
	req.NoError(err)
	req.Equal([]string{"m2", "m1"}, contents(second.Messages))

	last, err := repository.List("chat-1", domain.PageRequest{Limit: 2, Cursor: second.Cursor})
	req.NoError(err)
	req.Equal([]string{"m0"}, contents(last.Messages))
	req.Empty(last.Cursor)
}

func Test_List_With_Offset(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)
	at := time.Now().UTC()
	for i := 0; i < 4; i++ {
		_, err := repository.Append(newMessage("chat-1", "alice", fmt.Sprintf("m%d", i), at))
		req.NoError(err)
	}

	page, err := repository.List("chat-1", domain.PageRequest{Limit: 2, Offset: 1})
	req.NoError(err)
	req.Equal([]string{"m2", "m1"}, contents(page.Messages))

	empty, err := repository.List("chat-1", domain.PageRequest{Limit: 2, Offset: 10})
	req.NoError(err)
	req.Empty(empty.Messages)
}

func Test_List_Rejects_Bad_Cursor(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)

	_, err := repository.List("chat-1", domain.PageRequest{Cursor: "not-a-seq"})
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func Test_Concurrent_Append_Never_Reuses_Sequence(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), 0)
	at := time.Now().UTC()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seqs := make(map[uint64]struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m, err := repository.Append(newMessage("chat-1", "alice", "x", at))
				if errors.Is(err, errors.ErrTransientStore) {
					continue
				}
				if err == nil {
					mu.Lock()
					seqs[m.Seq] = struct{}{}
					mu.Unlock()
				}
				return
			}
		}()
	}
	wg.Wait()
	req.Len(seqs, 20)
}

func contents(messages []domain.Message) []string {
	res := make([]string, 0, len(messages))
	for _, m := range messages {
		res = append(res, m.Content)
	}
	return res
}
