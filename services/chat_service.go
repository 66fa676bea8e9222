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

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreatePrivate(ctx context.Context, userID, otherID string) (domain.Chat, error)
	CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (domain.Chat, error)
	AddMember(ctx context.Context, actorID, chatID, userID string) error
	RemoveMember(ctx context.Context, actorID, chatID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]domain.ChatSummary, error)
	History(ctx context.Context, userID, chatID string, page domain.PageRequest) (domain.MessagePage, error)
	MessageStatus(ctx context.Context, userID, messageID string) (domain.Status, error)
	PostMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error)
	ReadMessage(ctx context.Context, userID, chatID, messageID string) (domain.ReceiptResult, error)
}

// ChatService is the chat management surface used by the REST API and the
// gateway. Every membership write invalidates the membership cache before
// returning.
type ChatService struct {
	log        *slog.Logger
	chats      repositories.IChatRepository
	membership contract.IMembership
	store      contract.IMessageStore
	receipts   contract.IReceiptTracker
	publisher  contract.IStatusPublisher
	notifier   contract.INotifier
	sender     contract.MessageSender
	now        func() time.Time
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	membership contract.IMembership,
	store contract.IMessageStore,
	receipts contract.IReceiptTracker,
	publisher contract.IStatusPublisher,
	notifier contract.INotifier,
	sender contract.MessageSender,
) *ChatService {
	return &ChatService{
		log:        log,
		chats:      chats,
		membership: membership,
		store:      store,
		receipts:   receipts,
		publisher:  publisher,
		notifier:   notifier,
		sender:     sender,
		now:        time.Now,
	}
}

// CreatePrivate returns the private chat of the pair, creating it once.
func (s *ChatService) CreatePrivate(ctx context.Context, userID, otherID string) (domain.Chat, error) {
	if err := validIDs(userID, otherID); err != nil {
		return domain.Chat{}, err
	}
	if userID == otherID {
		return domain.Chat{}, fmt.Errorf("%w: a private chat needs two distinct users", errors.ErrInvalidChat)
	}
	at := s.now().UTC()
	chatID := uuid.NewString()
	chat, created, err := s.chats.CreatePrivate(
		domain.Chat{ID: chatID, Type: domain.PrivateChat, CreatedBy: userID, CreatedAt: at, LastActivity: at},
		[]domain.ChatMember{
			{ChatID: chatID, UserID: userID, Role: domain.RoleAdmin, JoinedAt: at},
			{ChatID: chatID, UserID: otherID, Role: domain.RoleAdmin, JoinedAt: at},
		})
	if err != nil {
		return domain.Chat{}, err
	}
	if created {
		s.membership.Invalidate(chat.ID)
		s.log.Info("Private chat created", "chat_id", chat.ID, "user_id", userID)
	}
	return chat, nil
}

// CreateGroup makes the creator admin and every other listed user member.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, fmt.Errorf("%w: a group needs a name", errors.ErrInvalidChat)
	}
	if err := validIDs(append([]string{creatorID}, memberIDs...)...); err != nil {
		return domain.Chat{}, err
	}
	at := s.now().UTC()
	chat := domain.Chat{ID: uuid.NewString(), Type: domain.GroupChat, Name: name, CreatedBy: creatorID, CreatedAt: at, LastActivity: at}
	others := lo.Without(lo.Uniq(memberIDs), creatorID)
	members := []domain.ChatMember{{ChatID: chat.ID, UserID: creatorID, Role: domain.RoleAdmin, JoinedAt: at}}
	for _, userID := range others {
		members = append(members, domain.ChatMember{ChatID: chat.ID, UserID: userID, Role: domain.RoleMember, JoinedAt: at})
	}
	if err := s.chats.CreateChat(chat, members); err != nil {
		return domain.Chat{}, err
	}
	s.membership.Invalidate(chat.ID)
	for _, userID := range others {
		s.notifyAdded(ctx, chat, creatorID, userID)
	}
	s.log.Info("Group created", "chat_id", chat.ID, "user_id", creatorID, "members", len(members))
	return chat, nil
}

// AddMember is reserved to group admins. Adding an existing member is a no-op.
func (s *ChatService) AddMember(ctx context.Context, actorID, chatID, userID string) error {
	if err := validIDs(userID); err != nil {
		return err
	}
	chat, err := s.requireGroupAdmin(ctx, actorID, chatID)
	if err != nil {
		return err
	}
	member, err := s.membership.IsMember(ctx, chatID, userID)
	if err != nil || member {
		return err
	}
	err = s.chats.AddMember(domain.ChatMember{ChatID: chatID, UserID: userID, Role: domain.RoleMember, JoinedAt: s.now().UTC()})
	s.membership.Invalidate(chatID)
	if err != nil {
		return err
	}
	s.notifyAdded(ctx, chat, actorID, userID)
	return nil
}

// RemoveMember is reserved to group admins, except that anyone may leave a
// group. Nobody leaves a private chat: the pair keeps reusing it.
func (s *ChatService) RemoveMember(ctx context.Context, actorID, chatID, userID string) error {
	if actorID != userID {
		if _, err := s.requireGroupAdmin(ctx, actorID, chatID); err != nil {
			return err
		}
	} else {
		chat, err := s.chats.GetChat(chatID)
		if err != nil {
			return err
		}
		if err = s.requireMember(ctx, chatID, actorID); err != nil {
			return err
		}
		if chat.Type != domain.GroupChat {
			return fmt.Errorf("%w: members of a private chat are fixed", errors.ErrInvalidChat)
		}
	}
	err := s.chats.RemoveMember(chatID, userID)
	s.membership.Invalidate(chatID)
	return err
}

// ListForUser lists the user's chats, most recently active first, with
// members and unread count.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	chats, err := s.chats.ChatsForUser(userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		members, err := s.membership.Members(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.receipts.UnreadCount(ctx, userID, chat.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ChatSummary{Chat: chat, Members: members, UnreadCount: unread})
	}
	return summaries, nil
}

// History is a newest-first page of the chat, each message carrying its
// derived status.
func (s *ChatService) History(ctx context.Context, userID, chatID string, page domain.PageRequest) (domain.MessagePage, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return domain.MessagePage{}, err
	}
	result, err := s.store.List(ctx, chatID, page)
	if err != nil {
		return domain.MessagePage{}, err
	}
	for i := range result.Messages {
		status, err := s.receipts.AggregateStatus(ctx, result.Messages[i].ID)
		if err != nil {
			return domain.MessagePage{}, err
		}
		result.Messages[i].Status = status
	}
	return result, nil
}

func (s *ChatService) MessageStatus(ctx context.Context, userID, messageID string) (domain.Status, error) {
	message, err := s.store.Get(ctx, messageID)
	if err != nil {
		return "", err
	}
	if err = s.requireMember(ctx, message.ChatID, userID); err != nil {
		return "", err
	}
	return s.receipts.AggregateStatus(ctx, messageID)
}

// PostMessage goes through the same delivery path as the gateway.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.sender.Send(ctx, cmd)
}

// MarkChatRead reads the whole chat and lets each sender know.
func (s *ChatService) MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error) {
	changed, err := s.receipts.MarkChatRead(ctx, userID, chatID)
	for _, messageID := range changed {
		s.publisher.Publish(ctx, messageID)
	}
	return changed, err
}

// ReadMessage records userID's read receipt for a message the client
// addressed within chatID, and lets the sender know when it is new.
func (s *ChatService) ReadMessage(ctx context.Context, userID, chatID, messageID string) (domain.ReceiptResult, error) {
	message, err := s.store.Get(ctx, messageID)
	if err != nil {
		return domain.ReceiptResult{}, err
	}
	if message.ChatID != chatID {
		return domain.ReceiptResult{}, fmt.Errorf("%w: message %s is not in chat %s", errors.ErrInvalidPayload, messageID, chatID)
	}
	result, err := s.receipts.RecordRead(ctx, messageID, userID)
	if err != nil {
		return domain.ReceiptResult{}, err
	}
	if result.Created {
		s.publisher.Publish(ctx, messageID)
	}
	return result, nil
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	member, err := s.membership.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: %s in %s", errors.ErrNotMember, userID, chatID)
	}
	return nil
}

func (s *ChatService) requireGroupAdmin(ctx context.Context, actorID, chatID string) (domain.Chat, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.Type != domain.GroupChat {
		return domain.Chat{}, fmt.Errorf("%w: members of a private chat are fixed", errors.ErrInvalidChat)
	}
	role, err := s.membership.Role(ctx, chatID, actorID)
	if err != nil {
		return domain.Chat{}, err
	}
	switch role {
	case domain.RoleAdmin:
		return chat, nil
	case domain.RoleNone:
		return domain.Chat{}, fmt.Errorf("%w: %s in %s", errors.ErrNotMember, actorID, chatID)
	default:
		return domain.Chat{}, fmt.Errorf("%w: %s in %s", errors.ErrNotAdmin, actorID, chatID)
	}
}

func (s *ChatService) notifyAdded(ctx context.Context, chat domain.Chat, actorID, userID string) {
	_, err := s.notifier.Enqueue(ctx, userID, domain.NotificationDraft{
		Type:     domain.NotificationAddedToChat,
		Priority: domain.PriorityNormal,
		Payload:  domain.NotificationPayload{ChatID: chat.ID, SenderID: actorID, Preview: chat.Name, ChatType: chat.Type},
	})
	if err != nil {
		s.log.Warn("Unable to notify new member", "chat_id", chat.ID, "user_id", userID, "error", err)
	}
}

func validIDs(ids ...string) error {
	for _, id := range ids {
		if !domain.ValidID(id) {
			return fmt.Errorf("%w: invalid user id %q", errors.ErrInvalidPayload, id)
		}
	}
	return nil
}
