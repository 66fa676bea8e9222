package repositories

import (
	"courier/domain"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IReceiptRepository interface {
	RecordDelivered(messageID, userID string, at time.Time) (bool, error)
	RecordRead(messageID, userID string, at time.Time) (bool, error)
	Delivered(messageID string) (map[string]struct{}, error)
	Read(messageID string) (map[string]struct{}, error)
	UnreadMessages(userID, chatID string) ([]domain.Message, error)
}

type ReceiptRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewReceiptRepository(db *badger.DB, log *slog.Logger) ReceiptRepository {
	return ReceiptRepository{db: db, log: log}
}

type receiptRow struct {
	At time.Time
}

// RecordDelivered creates the delivery receipt unless one already exists.
// It reports whether a row was written.
func (r ReceiptRepository) RecordDelivered(messageID, userID string, at time.Time) (bool, error) {
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		created, err = createIfAbsent(txn, deliveredKey(messageID, userID), at)
		return err
	})
	if err != nil {
		return false, storeErr("record delivered", err)
	}
	return created, nil
}

// RecordRead creates the read receipt unless one already exists. A missing
// delivery receipt is created in the same transaction with the same
// timestamp: read implies delivered.
func (r ReceiptRepository) RecordRead(messageID, userID string, at time.Time) (bool, error) {
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := createIfAbsent(txn, deliveredKey(messageID, userID), at); err != nil {
			return err
		}
		var err error
		created, err = createIfAbsent(txn, readKey(messageID, userID), at)
		return err
	})
	if err != nil {
		return false, storeErr("record read", err)
	}
	return created, nil
}

func createIfAbsent(txn *badger.Txn, key []byte, at time.Time) (bool, error) {
	found, err := exists(txn, key)
	if err != nil || found {
		return false, err
	}
	return true, setRow(txn, key, receiptRow{At: at.UTC()})
}

func (r ReceiptRepository) Delivered(messageID string) (map[string]struct{}, error) {
	return r.userSet("list delivered", deliveredPrefix(messageID))
}

func (r ReceiptRepository) Read(messageID string) (map[string]struct{}, error) {
	return r.userSet("list read", readPrefix(messageID))
}

func (r ReceiptRepository) userSet(op string, prefix []byte) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	err := r.db.View(func(txn *badger.Txn) error {
		for _, userID := range suffixes(txn, prefix) {
			set[userID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return set, nil
}

// UnreadMessages is the set difference between the chat's messages written
// by others and the messages userID has a read receipt for. Both sides are
// read from the same snapshot, so concurrent receipt writes never skew it.
func (r ReceiptRepository) UnreadMessages(userID, chatID string) ([]domain.Message, error) {
	var unread []domain.Message
	prefix := messagePrefix(chatID)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row messageRow
			if err := it.Item().Value(func(val []byte) error {
				return decodeInto(val, &row)
			}); err != nil {
				return err
			}
			if row.SenderID == userID {
				continue
			}
			found, err := exists(txn, readKey(row.ID, userID))
			if err != nil {
				return err
			}
			if !found {
				unread = append(unread, toMessage(row))
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("unread messages", err)
	}
	return unread, nil
}
