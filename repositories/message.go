package repositories

import (
	"courier/domain"
	"courier/errors"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const defaultPageSize = 50

type IMessageRepository interface {
	Append(message domain.Message) (domain.Message, error)
	Get(messageID string) (domain.Message, error)
	List(chatID string, page domain.PageRequest) (domain.MessagePage, error)
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	maxLimit int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, maxLimit int) MessageRepository {
	if maxLimit <= 0 {
		maxLimit = defaultPageSize
	}
	return MessageRepository{db: db, log: log, maxLimit: maxLimit}
}

type messageRow struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	Type      string
	Seq       uint64
	Timestamp time.Time
}

// Append assigns the next per-chat sequence number and persists the message
// together with its id index in one transaction, so a failed append is never
// partially visible. The key is "msg:{chat}:{seq padded to 20}" which keeps
// the log sorted by append order.
func (m MessageRepository) Append(message domain.Message) (domain.Message, error) {
	err := m.db.Update(func(txn *badger.Txn) error {
		next, err := nextSeq(txn, message.ChatID)
		if err != nil {
			return err
		}
		message.Seq = next
		key := messageKey(message.ChatID, next)
		if err = setRow(txn, key, fromMessage(message)); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(message.ID), key)
	})
	if err != nil {
		return domain.Message{}, storeErr("append message", err)
	}
	return message, nil
}

func nextSeq(txn *badger.Txn, chatID string) (uint64, error) {
	var current uint64
	item, err := txn.Get(seqKey(chatID))
	switch {
	case err == nil:
		if err = item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}
	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return next, txn.Set(seqKey(chatID), buf)
}

// Get resolves a message through the id index.
func (m MessageRepository) Get(messageID string) (domain.Message, error) {
	var row messageRow
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIndexKey(messageID))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getRow(txn, key, &row)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, storeErr("get message", err)
	}
	return toMessage(row), nil
}

// List returns a newest-first page of a chat log using a reverse prefix scan.
// The cursor is the sequence number of the last message of the previous
// page; the scan resumes just below it.
func (m MessageRepository) List(chatID string, page domain.PageRequest) (domain.MessagePage, error) {
	limit := page.Limit
	if limit <= 0 || limit > m.maxLimit {
		limit = m.maxLimit
	}
	prefix := messagePrefix(chatID)

	var seekKey []byte
	skip := 0
	switch page.Cursor {
	case "":
		seekKey = messageKey(chatID, 1<<63)
		skip = max(page.Offset, 0)
	default:
		seq, err := strconv.ParseUint(page.Cursor, 10, 64)
		if err != nil || seq == 0 {
			return domain.MessagePage{}, fmt.Errorf("%w: bad cursor %q", errors.ErrInvalidPayload, page.Cursor)
		}
		seekKey = messageKey(chatID, seq-1)
	}

	var result domain.MessagePage
	more := false
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(result.Messages) == limit {
				more = true
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			var row messageRow
			if err := it.Item().Value(func(val []byte) error {
				return decodeInto(val, &row)
			}); err != nil {
				return err
			}
			result.Messages = append(result.Messages, toMessage(row))
		}
		return nil
	})
	if err != nil {
		return domain.MessagePage{}, storeErr("list messages", err)
	}
	if more {
		last := result.Messages[len(result.Messages)-1]
		result.Cursor = strconv.FormatUint(last.Seq, 10)
	}
	return result, nil
}

func fromMessage(message domain.Message) messageRow {
	return messageRow{
		ID:        message.ID,
		ChatID:    message.ChatID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		Type:      string(message.Type),
		Seq:       message.Seq,
		Timestamp: message.Timestamp,
	}
}

func toMessage(row messageRow) domain.Message {
	return domain.Message{
		ID:        row.ID,
		ChatID:    row.ChatID,
		SenderID:  row.SenderID,
		Content:   row.Content,
		Type:      domain.MessageType(row.Type),
		Seq:       row.Seq,
		Timestamp: row.Timestamp.UTC(),
	}
}
