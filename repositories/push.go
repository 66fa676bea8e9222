package repositories

import (
	"courier/domain"

	"github.com/dgraph-io/badger/v4"
)

type IPushRepository interface {
	Save(sub domain.PushSubscription) error
	ListForUser(userID string) ([]domain.PushSubscription, error)
	Delete(userID, endpoint string) error
}

// PushRepository stores web push subscriptions, one row per endpoint.
type PushRepository struct {
	db *badger.DB
}

func NewPushRepository(db *badger.DB) PushRepository {
	return PushRepository{db: db}
}

type pushRow struct {
	UserID   string
	Endpoint string
	Auth     string
	P256dh   string
}

func (p PushRepository) Save(sub domain.PushSubscription) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return setRow(txn, pushKey(sub.UserID, sub.Endpoint), pushRow(sub))
	})
	return storeErr("save push subscription", err)
}

func (p PushRepository) ListForUser(userID string) ([]domain.PushSubscription, error) {
	var subs []domain.PushSubscription
	prefix := pushPrefix(userID)
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row pushRow
			if err := it.Item().Value(func(val []byte) error {
				return decodeInto(val, &row)
			}); err != nil {
				return err
			}
			subs = append(subs, domain.PushSubscription(row))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list push subscriptions", err)
	}
	return subs, nil
}

// Delete drops an endpoint the push service reported as gone.
func (p PushRepository) Delete(userID, endpoint string) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pushKey(userID, endpoint))
	})
	return storeErr("delete push subscription", err)
}
