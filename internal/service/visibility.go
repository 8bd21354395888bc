package service

import (
	"fmt"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"
)

// Decides which messages a user can see and how many of them are unread.
//
// Direct chats are unrestricted between the pair and track reads per message.
// Groups and communities only show messages created at or after the reader's join
// date and track reads with one last-seen timestamp per member.
type VisibilityService interface {
	History(conv conversation.Conversation, userID string) ([]*entity.Message, error) // Visible messages, by update time
	UnreadCount(conv conversation.Conversation, userID string) (int64, error)
	MarkRead(conv conversation.Conversation, userID string) error // Idempotent
}

type visibilityService struct {
	storage *data.StorageManager
	now     Clock
	logger  nlog.Logger
}

func NewVisibilityService(storage *data.StorageManager, now Clock, logger nlog.Logger) VisibilityService {
	if now == nil {
		now = SystemClock
	}
	if logger == nil {
		logger = nlog.Nop()
	}
	return &visibilityService{storage: storage, now: now, logger: logger}
}

func (v *visibilityService) Logf(format string, a ...any) {
	v.logger.Logf(format, a...)
}

// joinDate returns the lower bound of what userID may read in conv.
// ErrNotFound if the conversation does not exist, ErrNotMember if userID is not in it.
func joinDate(storage *data.StorageManager, conv conversation.Conversation, userID string) (time.Time, error) {
	switch c := conv.(type) {
	case conversation.Group:
		member, err := storage.GetGroupRepository().GetMember(c.GroupID, userID)
		if err == nil {
			return member.JoinedAt, nil
		}
		if _, gerr := storage.GetGroupRepository().GetByID(c.GroupID); gerr != nil {
			return time.Time{}, notFoundOr(gerr, "Group not found")
		}
		return time.Time{}, notMemberOr(err, "You are not a member of this group")
	case conversation.Community:
		member, err := storage.GetCommunityRepository().GetMember(c.CommunityID, userID)
		if err == nil {
			return member.JoinedAt, nil
		}
		if _, cerr := storage.GetCommunityRepository().GetByID(c.CommunityID); cerr != nil {
			return time.Time{}, notFoundOr(cerr, "Community not found")
		}
		return time.Time{}, notMemberOr(err, "You are not a member of this community")
	case conversation.Direct:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unknown conversation %T", conv)
	}
}

func (v *visibilityService) History(conv conversation.Conversation, userID string) ([]*entity.Message, error) {
	messages := v.storage.GetMessageRepository()
	switch c := conv.(type) {
	case conversation.Direct:
		return messages.Between(userID, c.Peer)
	case conversation.Group, conversation.Community:
		since, err := joinDate(v.storage, c, userID)
		if err != nil {
			return nil, err
		}
		return messages.InConversation(c.Kind(), c.Ref(), since)
	default:
		return nil, fmt.Errorf("unknown conversation %T", conv)
	}
}

func (v *visibilityService) UnreadCount(conv conversation.Conversation, userID string) (int64, error) {
	return unreadCount(v.storage, conv, userID)
}

func unreadCount(storage *data.StorageManager, conv conversation.Conversation, userID string) (int64, error) {
	switch c := conv.(type) {
	case conversation.Direct:
		return storage.GetMessageRepository().CountUnreadDirect(c.Peer, userID)
	case conversation.Group, conversation.Community:
		since, err := joinDate(storage, c, userID)
		if err != nil {
			return 0, err
		}
		lastSeen, err := storage.GetLastSeenRepository().Get(c.Kind().String(), c.Ref(), userID)
		if err != nil {
			return 0, err
		}
		return storage.GetMessageRepository().CountUnread(c.Kind(), c.Ref(), userID, lastSeen, since)
	default:
		return 0, fmt.Errorf("unknown conversation %T", conv)
	}
}

func (v *visibilityService) MarkRead(conv conversation.Conversation, userID string) error {
	switch c := conv.(type) {
	case conversation.Direct:
		changed, err := v.storage.GetMessageRepository().MarkDirectRead(c.Peer, userID)
		if err != nil {
			return err
		}
		if changed > 0 {
			v.Logf("%s read %d message(s) from %s", userID, changed, c.Peer)
		}
		return nil
	case conversation.Group, conversation.Community:
		if _, err := joinDate(v.storage, c, userID); err != nil {
			return err
		}
		return v.storage.GetLastSeenRepository().Set(c.Kind().String(), c.Ref(), userID, v.now())
	default:
		return fmt.Errorf("unknown conversation %T", conv)
	}
}
