package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"courier/repositories"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

var _ contract.IMessageStore = (*MessageStore)(nil)

// MessageStore is the append-only chat log. Messages never change once
// appended, which makes them safe to cache by id.
type MessageStore struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	membership contract.IMembership
	cache      *ristretto.Cache[string, domain.Message]
	policy     RetryPolicy
	maxSize    int
	now        func() time.Time
}

func NewMessageStore(
	log *slog.Logger,
	repository repositories.IMessageRepository,
	membership contract.IMembership,
	policy RetryPolicy,
	maxSize int,
) (*MessageStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, domain.Message]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MessageStore{
		log:        log,
		repository: repository,
		membership: membership,
		cache:      cache,
		policy:     policy,
		maxSize:    maxSize,
		now:        time.Now,
	}, nil
}

// Append validates the sender and persists the message atomically. Only the
// store write is retried; an authorization failure returns immediately.
func (s *MessageStore) Append(ctx context.Context, chatID, senderID, content string, kind domain.MessageType) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("%w: empty content", errors.ErrInvalidPayload)
	}
	if s.maxSize > 0 && len(content) > s.maxSize {
		return domain.Message{}, fmt.Errorf("%w: content exceeds %d bytes", errors.ErrInvalidPayload, s.maxSize)
	}
	if kind == "" {
		kind = domain.TextMessage
	}
	member, err := s.membership.IsMember(ctx, chatID, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if !member {
		return domain.Message{}, fmt.Errorf("%w: %s in %s", errors.ErrNotMember, senderID, chatID)
	}

	message := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      kind,
		Timestamp: s.now().UTC(),
	}
	stored, err := retry(ctx, s.policy, func() (domain.Message, error) {
		return s.repository.Append(message)
	})
	if err != nil {
		s.log.Error("Message append failed", "chat_id", chatID, "error", err)
		return domain.Message{}, err
	}
	s.cache.Set(stored.ID, stored, 1)
	stored.Status = domain.StatusSent
	return stored, nil
}

func (s *MessageStore) Get(ctx context.Context, messageID string) (domain.Message, error) {
	if message, ok := s.cache.Get(messageID); ok {
		return message, nil
	}
	message, err := s.repository.Get(messageID)
	if err != nil {
		return domain.Message{}, err
	}
	s.cache.Set(messageID, message, 1)
	return message, nil
}

// List returns a newest-first page. Callers reverse it for display.
func (s *MessageStore) List(ctx context.Context, chatID string, page domain.PageRequest) (domain.MessagePage, error) {
	return s.repository.List(chatID, page)
}

func (s *MessageStore) Close() {
	s.cache.Close()
}
