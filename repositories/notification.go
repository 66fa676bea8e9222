package repositories

import (
	"courier/domain"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type INotificationRepository interface {
	Put(notification domain.Notification) error
	List(userID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	CountUnread(userID string) (int, error)
	MarkRead(userID string, ids []string, at time.Time) ([]domain.Notification, error)
	MarkAllRead(userID string, filter domain.NotificationFilter, at time.Time) ([]domain.Notification, error)
	DeleteReadBefore(cutoff time.Time) (int, error)
}

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

type notificationRow struct {
	ID        string
	UserID    string
	Type      string
	Priority  string
	ChatID    string
	MessageID string
	SenderID  string
	Preview   string
	ChatType  string
	Kind      string
	IsRead    bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

func (n NotificationRepository) Put(notification domain.Notification) error {
	err := n.db.Update(func(txn *badger.Txn) error {
		return setRow(txn, notificationKey(notification.UserID, notification.ID), fromNotification(notification))
	})
	return storeErr("put notification", err)
}

// List returns the user's notifications matching filter, highest priority
// first and newest first inside a priority bucket.
func (n NotificationRepository) List(userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := n.db.View(func(txn *badger.Txn) error {
		var err error
		rows, err = scanNotifications(txn, notificationPrefix(userID))
		return err
	})
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return newNotificationQuery(filter).apply(rows), nil
}

func (n NotificationRepository) CountUnread(userID string) (int, error) {
	var count int
	err := n.db.View(func(txn *badger.Txn) error {
		rows, err := scanNotifications(txn, notificationPrefix(userID))
		count = lo.CountBy(rows, func(row domain.Notification) bool { return !row.IsRead })
		return err
	})
	if err != nil {
		return 0, storeErr("count notifications", err)
	}
	return count, nil
}

// MarkRead flags the given notifications as read and returns the ones that
// were unread before the call. Unknown ids and already read rows are skipped.
func (n NotificationRepository) MarkRead(userID string, ids []string, at time.Time) ([]domain.Notification, error) {
	var changed []domain.Notification
	err := n.db.Update(func(txn *badger.Txn) error {
		for _, id := range lo.Uniq(ids) {
			var row notificationRow
			if err := getRow(txn, notificationKey(userID, id), &row); err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			notification, err := markRow(txn, row, at)
			if err != nil {
				return err
			}
			if notification != nil {
				changed = append(changed, *notification)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("mark notifications read", err)
	}
	return changed, nil
}

// MarkAllRead flags every unread notification matching filter. Paging
// fields of the filter are ignored.
func (n NotificationRepository) MarkAllRead(userID string, filter domain.NotificationFilter, at time.Time) ([]domain.Notification, error) {
	filter.Limit, filter.Offset = 0, 0
	q := newNotificationQuery(filter)
	var changed []domain.Notification
	err := n.db.Update(func(txn *badger.Txn) error {
		rows, err := scanNotifications(txn, notificationPrefix(userID))
		if err != nil {
			return err
		}
		for _, row := range q.apply(rows) {
			notification, err := markRow(txn, fromNotification(row), at)
			if err != nil {
				return err
			}
			if notification != nil {
				changed = append(changed, *notification)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("mark all notifications read", err)
	}
	return changed, nil
}

func markRow(txn *badger.Txn, row notificationRow, at time.Time) (*domain.Notification, error) {
	if row.IsRead {
		return nil, nil
	}
	row.IsRead = true
	row.ReadAt = lo.ToPtr(at.UTC())
	if err := setRow(txn, notificationKey(row.UserID, row.ID), row); err != nil {
		return nil, err
	}
	return lo.ToPtr(toNotification(row)), nil
}

// DeleteReadBefore removes read notifications of every user created before
// cutoff. Deletes are batched so a large sweep never exceeds a transaction.
func (n NotificationRepository) DeleteReadBefore(cutoff time.Time) (int, error) {
	var expired [][]byte
	err := n.db.View(func(txn *badger.Txn) error {
		rows, err := scanNotifications(txn, []byte("notif:"))
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.IsRead && row.CreatedAt.Before(cutoff) {
				expired = append(expired, notificationKey(row.UserID, row.ID))
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("scan expired notifications", err)
	}
	batch := n.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range expired {
		if err = batch.Delete(key); err != nil {
			return 0, storeErr("delete notifications", err)
		}
	}
	if err = batch.Flush(); err != nil {
		return 0, storeErr("delete notifications", err)
	}
	return len(expired), nil
}

func scanNotifications(txn *badger.Txn, prefix []byte) ([]domain.Notification, error) {
	var rows []domain.Notification
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var row notificationRow
		if err := it.Item().Value(func(val []byte) error {
			return decodeInto(val, &row)
		}); err != nil {
			return nil, err
		}
		rows = append(rows, toNotification(row))
	}
	return rows, nil
}

func fromNotification(n domain.Notification) notificationRow {
	return notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Priority:  string(n.Priority),
		ChatID:    n.Payload.ChatID,
		MessageID: n.Payload.MessageID,
		SenderID:  n.Payload.SenderID,
		Preview:   n.Payload.Preview,
		ChatType:  string(n.Payload.ChatType),
		Kind:      string(n.Payload.Kind),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}

func toNotification(row notificationRow) domain.Notification {
	return domain.Notification{
		ID:       row.ID,
		UserID:   row.UserID,
		Type:     domain.NotificationType(row.Type),
		Priority: domain.Priority(row.Priority),
		Payload: domain.NotificationPayload{
			ChatID:    row.ChatID,
			MessageID: row.MessageID,
			SenderID:  row.SenderID,
			Preview:   row.Preview,
			ChatType:  domain.ChatType(row.ChatType),
			Kind:      domain.MessageType(row.Kind),
		},
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
		ReadAt:    row.ReadAt,
	}
}
