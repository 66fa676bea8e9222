//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"courier/domain"
	"courier/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	SetPresence(userID string, online bool, at time.Time) error
	GetUser(userID string) (domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

type userRow struct {
	ID       string
	IsOnline bool
	LastSeen time.Time
}

// SetPresence upserts the durable presence mirror of a user.
// LastSeen only moves on the transition to offline.
func (u UserRepository) SetPresence(userID string, online bool, at time.Time) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		row := userRow{ID: userID}
		if err := getRow(txn, userKey(userID), &row); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		row.IsOnline = online
		if !online {
			row.LastSeen = at
		}
		return setRow(txn, userKey(userID), row)
	})
	return storeErr("set presence", err)
}

// GetUser retrieves the durable presence record of a user.
func (u UserRepository) GetUser(userID string) (domain.User, error) {
	var row userRow
	err := u.db.View(func(txn *badger.Txn) error {
		return getRow(txn, userKey(userID), &row)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return domain.User{ID: row.ID, IsOnline: row.IsOnline, LastSeen: row.LastSeen}, nil
}
