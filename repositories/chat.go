package repositories

import (
	"courier/domain"
	"courier/errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IChatRepository interface {
	CreateChat(chat domain.Chat, members []domain.ChatMember) error
	CreatePrivate(chat domain.Chat, members []domain.ChatMember) (domain.Chat, bool, error)
	GetChat(chatID string) (domain.Chat, error)
	Members(chatID string) ([]domain.ChatMember, error)
	AddMember(member domain.ChatMember) error
	RemoveMember(chatID, userID string) error
	ChatsForUser(userID string) ([]domain.Chat, error)
	TouchActivity(update domain.ActivityUpdate) error
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

type chatRow struct {
	ID                 string
	Type               string
	Name               string
	CreatedBy          string
	CreatedAt          time.Time
	LastActivity       time.Time
	LastMessageID      string
	LastMessagePreview string
}

type memberRow struct {
	ChatID   string
	UserID   string
	Role     string
	JoinedAt time.Time
}

// CreateChat writes the chat, its members and the reverse user index in one transaction.
func (c *ChatRepository) CreateChat(chat domain.Chat, members []domain.ChatMember) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return c.writeChat(txn, chat, members)
	})
	return storeErr("create chat", err)
}

// CreatePrivate is idempotent per pair of users: when a private chat
// already links them, that chat is returned and created is false.
func (c *ChatRepository) CreatePrivate(chat domain.Chat, members []domain.ChatMember) (domain.Chat, bool, error) {
	if len(members) != 2 {
		return domain.Chat{}, false, fmt.Errorf("%w: a private chat has exactly two members", errors.ErrInvalidChat)
	}
	existing := domain.Chat{}
	created := false
	err := c.db.Update(func(txn *badger.Txn) error {
		pk := privateKey(members[0].UserID, members[1].UserID)
		item, err := txn.Get(pk)
		if err == nil {
			var chatID []byte
			if chatID, err = item.ValueCopy(nil); err != nil {
				return err
			}
			var row chatRow
			if err = getRow(txn, chatKey(string(chatID)), &row); err != nil {
				return err
			}
			existing = toChat(row)
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err = txn.Set(pk, []byte(chat.ID)); err != nil {
			return err
		}
		created = true
		existing = chat
		return c.writeChat(txn, chat, members)
	})
	if err != nil {
		return domain.Chat{}, false, storeErr("create private chat", err)
	}
	return existing, created, nil
}

func (c *ChatRepository) writeChat(txn *badger.Txn, chat domain.Chat, members []domain.ChatMember) error {
	if err := setRow(txn, chatKey(chat.ID), fromChat(chat)); err != nil {
		return err
	}
	for _, m := range members {
		if err := c.writeMember(txn, m); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChatRepository) writeMember(txn *badger.Txn, m domain.ChatMember) error {
	row := memberRow{ChatID: m.ChatID, UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt}
	if err := setRow(txn, memberKey(m.ChatID, m.UserID), row); err != nil {
		return err
	}
	return txn.Set(userChatKey(m.UserID, m.ChatID), nil)
}

func (c *ChatRepository) GetChat(chatID string) (domain.Chat, error) {
	var row chatRow
	err := c.db.View(func(txn *badger.Txn) error {
		return getRow(txn, chatKey(chatID), &row)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, storeErr("get chat", err)
	}
	return toChat(row), nil
}

// Members returns every member row of a chat, in user ID order.
func (c *ChatRepository) Members(chatID string) ([]domain.ChatMember, error) {
	var members []domain.ChatMember
	err := c.db.View(func(txn *badger.Txn) error {
		if ok, err := exists(txn, chatKey(chatID)); err != nil {
			return err
		} else if !ok {
			return errors.ErrChatNotFound
		}
		prefix := memberPrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row memberRow
			err := it.Item().Value(func(val []byte) error {
				return decodeInto(val, &row)
			})
			if err != nil {
				return err
			}
			members = append(members, domain.ChatMember{
				ChatID: row.ChatID, UserID: row.UserID, Role: domain.Role(row.Role), JoinedAt: row.JoinedAt,
			})
		}
		return nil
	})
	if errors.Is(err, errors.ErrChatNotFound) {
		return nil, err
	}
	return members, storeErr("list members", err)
}

func (c *ChatRepository) AddMember(member domain.ChatMember) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		if ok, err := exists(txn, chatKey(member.ChatID)); err != nil {
			return err
		} else if !ok {
			return errors.ErrChatNotFound
		}
		return c.writeMember(txn, member)
	})
	if errors.Is(err, errors.ErrChatNotFound) {
		return err
	}
	return storeErr("add member", err)
}

func (c *ChatRepository) RemoveMember(chatID, userID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(userChatKey(userID, chatID))
	})
	return storeErr("remove member", err)
}

// ChatsForUser resolves the reverse index, most recently active first.
func (c *ChatRepository) ChatsForUser(userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		for _, chatID := range suffixes(txn, userChatPrefix(userID)) {
			var row chatRow
			if err := getRow(txn, chatKey(chatID), &row); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					c.log.Warn("Dangling chat index", "user_id", userID, "chat_id", chatID)
					continue
				}
				return err
			}
			chats = append(chats, toChat(row))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list chats", err)
	}
	sortByActivity(chats)
	return chats, nil
}

// TouchActivity moves lastActivity and the preview forward. Updates that
// arrive out of order are ignored.
func (c *ChatRepository) TouchActivity(update domain.ActivityUpdate) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		var row chatRow
		if err := getRow(txn, chatKey(update.ChatID), &row); err != nil {
			return err
		}
		if !update.At.After(row.LastActivity) {
			return nil
		}
		row.LastActivity = update.At
		row.LastMessageID = update.MessageID
		row.LastMessagePreview = update.Preview
		return setRow(txn, chatKey(update.ChatID), row)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrChatNotFound
	}
	return storeErr("touch activity", err)
}

func sortByActivity(chats []domain.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
}

func fromChat(chat domain.Chat) chatRow {
	return chatRow{
		ID:                 chat.ID,
		Type:               string(chat.Type),
		Name:               chat.Name,
		CreatedBy:          chat.CreatedBy,
		CreatedAt:          chat.CreatedAt,
		LastActivity:       chat.LastActivity,
		LastMessageID:      chat.LastMessageID,
		LastMessagePreview: chat.LastMessagePreview,
	}
}

func toChat(row chatRow) domain.Chat {
	return domain.Chat{
		ID:                 row.ID,
		Type:               domain.ChatType(row.Type),
		Name:               row.Name,
		CreatedBy:          row.CreatedBy,
		CreatedAt:          row.CreatedAt,
		LastActivity:       row.LastActivity,
		LastMessageID:      row.LastMessageID,
		LastMessagePreview: row.LastMessagePreview,
	}
}

// MemberIDs projects member rows onto their user IDs.
func MemberIDs(members []domain.ChatMember) []string {
	return lo.Map(members, func(m domain.ChatMember, _ int) string { return m.UserID })
}
