package repositories

import (
	"courier/codec"
	"courier/errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. IDs never contain domain.IDSeparator: the token verifier,
// request validation and the chat service refuse them. So a prefix scan
// on "<ns>:<id>:" only sees rows of that id.
//
//	user:{userID}
//	chat:{chatID}
//	member:{chatID}:{userID}
//	uchat:{userID}:{chatID}
//	private:{userA}:{userB}            (A < B)
//	seq:{chatID}                       (last appended sequence, big endian)
//	msg:{chatID}:{seq padded to 20}
//	msgidx:{messageID}                 (-> msg key)
//	dlv:{messageID}:{userID}
//	read:{messageID}:{userID}
//	notif:{userID}:{notificationID}
//	push:{userID}:{endpoint}
const seqWidth = 20

func userKey(userID string) []byte { return []byte("user:" + userID) }

func chatKey(chatID string) []byte { return []byte("chat:" + chatID) }

func memberPrefix(chatID string) []byte { return []byte("member:" + chatID + ":") }

func memberKey(chatID, userID string) []byte { return []byte("member:" + chatID + ":" + userID) }

func userChatPrefix(userID string) []byte { return []byte("uchat:" + userID + ":") }

func userChatKey(userID, chatID string) []byte { return []byte("uchat:" + userID + ":" + chatID) }

func privateKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte("private:" + a + ":" + b)
}

func seqKey(chatID string) []byte { return []byte("seq:" + chatID) }

func messagePrefix(chatID string) []byte { return []byte("msg:" + chatID + ":") }

func messageKey(chatID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%0*d", chatID, seqWidth, seq))
}

func messageIndexKey(messageID string) []byte { return []byte("msgidx:" + messageID) }

func deliveredPrefix(messageID string) []byte { return []byte("dlv:" + messageID + ":") }

func deliveredKey(messageID, userID string) []byte { return []byte("dlv:" + messageID + ":" + userID) }

func readPrefix(messageID string) []byte { return []byte("read:" + messageID + ":") }

func readKey(messageID, userID string) []byte { return []byte("read:" + messageID + ":" + userID) }

func notificationPrefix(userID string) []byte { return []byte("notif:" + userID + ":") }

func notificationKey(userID, id string) []byte { return []byte("notif:" + userID + ":" + id) }

func pushPrefix(userID string) []byte { return []byte("push:" + userID + ":") }

func pushKey(userID, endpoint string) []byte { return []byte("push:" + userID + ":" + endpoint) }

// storeErr tags infrastructure failures as transient so the service layer
// can retry them. Missing keys are translated by the caller.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, errors.ErrTransientStore, err)
}

func getRow(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return codec.Unmarshal(val, out)
	})
}

func setRow(txn *badger.Txn, key []byte, row any) error {
	bytes, err := codec.Marshal(row)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// suffixes collects the part of every key after prefix, without values.
func suffixes(txn *badger.Txn, prefix []byte) []string {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var res []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		res = append(res, string(it.Item().Key()[len(prefix):]))
	}
	return res
}

func decodeInto(val []byte, out any) error {
	return codec.Unmarshal(val, out)
}

func isNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
