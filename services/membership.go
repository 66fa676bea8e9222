package services

import (
	"context"
	"courier/contract"
	"courier/domain"
	"courier/errors"
	"courier/repositories"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

var _ contract.IMembership = (*Membership)(nil)

// Membership resolves chat members through a read-through cache.
// Writers call Invalidate before returning, so a caller that just added a
// member sees it on its next read.
type Membership struct {
	mu      sync.RWMutex
	log     *slog.Logger
	chats   repositories.IChatRepository
	cache   map[string][]domain.ChatMember
	version map[string]uint64
}

func NewMembership(log *slog.Logger, chats repositories.IChatRepository) *Membership {
	return &Membership{
		log:     log,
		chats:   chats,
		cache:   make(map[string][]domain.ChatMember),
		version: make(map[string]uint64),
	}
}

func (m *Membership) load(chatID string) ([]domain.ChatMember, error) {
	m.mu.RLock()
	members, ok := m.cache[chatID]
	seen := m.version[chatID]
	m.mu.RUnlock()
	if ok {
		return members, nil
	}

	members, err := m.chats.Members(chatID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// An invalidation that raced the load wins: the stale rows are not cached.
	if m.version[chatID] == seen {
		m.cache[chatID] = members
	}
	m.mu.Unlock()
	return members, nil
}

func (m *Membership) Members(ctx context.Context, chatID string) ([]string, error) {
	members, err := m.load(chatID)
	if err != nil {
		return nil, err
	}
	return repositories.MemberIDs(members), nil
}

func (m *Membership) MembersAt(ctx context.Context, chatID string, at time.Time) ([]string, error) {
	members, err := m.load(chatID)
	if err != nil {
		return nil, err
	}
	joined := lo.Filter(members, func(cm domain.ChatMember, _ int) bool { return !cm.JoinedAt.After(at) })
	return repositories.MemberIDs(joined), nil
}

// Role is RoleNone for non members and for unknown chats.
func (m *Membership) Role(ctx context.Context, chatID, userID string) (domain.Role, error) {
	members, err := m.load(chatID)
	if errors.Is(err, errors.ErrChatNotFound) {
		return domain.RoleNone, nil
	}
	if err != nil {
		return domain.RoleNone, err
	}
	member, ok := lo.Find(members, func(cm domain.ChatMember) bool { return cm.UserID == userID })
	if !ok {
		return domain.RoleNone, nil
	}
	return member.Role, nil
}

func (m *Membership) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	role, err := m.Role(ctx, chatID, userID)
	return role != domain.RoleNone, err
}

func (m *Membership) Invalidate(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, chatID)
	m.version[chatID]++
	m.log.Debug("Membership cache invalidated", "chat_id", chatID)
}
