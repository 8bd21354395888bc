package service

import (
	"errors"
	"strings"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service used to handle communities. Anyone can join; only the owning admin edits the info.
type CommunityService interface {
	CreateCommunity(adminID, name, description, avatar string) (*CommunityDetails, error)
	GetAll(userID string) ([]CommunitySummary, error) // Joined and discoverable communities, by name
	GetDetails(communityID string) (*CommunityDetails, error)
	UpdateInfo(communityID, operatorID string, patch InfoPatch) (*CommunityDetails, error)

	Join(communityID, userID string) (*CommunityDetails, error)  // Joining twice keeps the first join date
	Leave(communityID, userID string) (*CommunityDetails, error) // The owning admin may leave and stays admin

	SendMessage(communityID, senderID string, in MessageInput) (*entity.Message, error)
	History(communityID, userID string) ([]ConversationMessageView, error)
	MarkRead(communityID, userID string) error
	IsMember(communityID, userID string) (bool, error)
}

type communityService struct {
	storage    *data.StorageManager
	visibility VisibilityService
	notifier   Notifier
	now        Clock
	logger     nlog.Logger
}

func NewCommunityService(storage *data.StorageManager, visibility VisibilityService, notifier Notifier, now Clock, logger nlog.Logger) CommunityService {
	if now == nil {
		now = SystemClock
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = nlog.Nop()
	}
	return &communityService{storage, visibility, notifier, now, logger}
}

func (c *communityService) Logf(format string, v ...any) {
	c.logger.Logf(format, v...)
}

func (c *communityService) nameTaken(name, exceptID string) (bool, error) {
	existing, err := c.storage.GetCommunityRepository().GetByName(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != exceptID, nil
}

func (c *communityService) load(communityID string) (*entity.Community, error) {
	community, err := c.storage.GetCommunityRepository().GetByID(communityID)
	if err != nil {
		return nil, notFoundOr(err, "Community not found")
	}
	return community, nil
}

func (c *communityService) toDetails(community *entity.Community) (*CommunityDetails, error) {
	ids := make([]string, 0, len(community.Members))
	joined := make(map[string]time.Time, len(community.Members))
	for _, m := range community.Members {
		ids = append(ids, m.UserID)
		joined[m.UserID] = m.JoinedAt
	}
	users, err := c.storage.GetUserRepository().GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	return &CommunityDetails{
		ID:          community.ID,
		Name:        community.Name,
		Description: community.Description,
		Avatar:      community.Avatar,
		Admin:       community.AdminID,
		Members:     membersView(indexUsers(users), ids, joined),
		CreatedAt:   community.CreatedAt,
		UpdatedAt:   community.UpdatedAt,
	}, nil
}

func (c *communityService) GetDetails(communityID string) (*CommunityDetails, error) {
	community, err := c.load(communityID)
	if err != nil {
		return nil, err
	}
	return c.toDetails(community)
}

func (c *communityService) CreateCommunity(adminID, name, description, avatar string) (*CommunityDetails, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	if _, err := c.storage.GetUserRepository().GetByID(adminID); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	taken, err := c.nameTaken(name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fail(ErrValidation, "Community name already exists")
	}

	now := c.now()
	community := &entity.Community{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Avatar:      avatar,
		AdminID:     adminID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     []entity.CommunityMember{{UserID: adminID, JoinedAt: now}},
	}
	err = c.storage.Atomic(func(tx *data.StorageManager) error {
		if err := tx.GetCommunityRepository().Create(community); err != nil {
			return err
		}
		return tx.GetLastSeenRepository().Set(conversation.KindCommunity.String(), community.ID, adminID, now)
	})
	if err != nil {
		c.Logf("Could not create community %q {%v}", name, err)
		return nil, err
	}
	c.Logf("Community %s (%q) created by %s", community.ID, name, adminID)
	return c.GetDetails(community.ID)
}

func (c *communityService) GetAll(userID string) ([]CommunitySummary, error) {
	communities, err := c.storage.GetCommunityRepository().GetAll()
	if err != nil {
		return nil, err
	}
	summaries := make([]CommunitySummary, 0, len(communities))
	for _, community := range communities {
		summary := CommunitySummary{
			ID:          community.ID,
			Name:        community.Name,
			Description: community.Description,
			Avatar:      community.Avatar,
			Admin:       community.AdminID,
			IsMember:    community.HasMember(userID),
			MemberCount: len(community.Members),
			IsCommunity: true,
		}
		if summary.IsMember {
			if err := c.fillActivity(&summary, community, userID); err != nil {
				return nil, err
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (c *communityService) fillActivity(summary *CommunitySummary, community *entity.Community, userID string) error {
	conv := conversation.Community{CommunityID: community.ID}
	unread, err := c.visibility.UnreadCount(conv, userID)
	if err != nil {
		return err
	}
	summary.UnreadCount = unread

	var since time.Time
	for _, m := range community.Members {
		if m.UserID == userID {
			since = m.JoinedAt
		}
	}
	last, err := c.storage.GetMessageRepository().Latest(conversation.KindCommunity, community.ID, since)
	if err != nil || last == nil {
		return err
	}
	content, created := last.Content, last.CreatedAt
	summary.LastMessage = &content
	summary.LastMessageTime = &created
	if sender, err := c.storage.GetUserRepository().GetByID(last.SenderID); err == nil {
		summary.LastMessageSenderName = &sender.Name
	}
	return nil
}

func (c *communityService) UpdateInfo(communityID, operatorID string, patch InfoPatch) (*CommunityDetails, error) {
	community, err := c.load(communityID)
	if err != nil {
		return nil, err
	}
	if community.AdminID != operatorID {
		return nil, fail(ErrUnauthorized, "Only the community admin can update the info")
	}
	fields := map[string]any{}
	if patch.Name != nil {
		name, err := validName(*patch.Name)
		if err != nil {
			return nil, err
		}
		taken, err := c.nameTaken(name, communityID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fail(ErrValidation, "Community name already exists")
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Avatar != nil {
		fields["avatar"] = *patch.Avatar
	}
	if err := c.storage.GetCommunityRepository().UpdateInfo(communityID, fields); err != nil {
		return nil, err
	}
	return c.GetDetails(communityID)
}

func (c *communityService) Join(communityID, userID string) (*CommunityDetails, error) {
	if _, err := c.load(communityID); err != nil {
		return nil, err
	}
	if _, err := c.storage.GetUserRepository().GetByID(userID); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	now := c.now()
	added := false
	err := c.storage.Atomic(func(tx *data.StorageManager) error {
		var err error
		added, err = tx.GetCommunityRepository().AddMemberIfAbsent(communityID, entity.CommunityMember{UserID: userID, JoinedAt: now})
		if err != nil {
			return err
		}
		return tx.GetLastSeenRepository().SetIfAbsent(conversation.KindCommunity.String(), communityID, userID, now)
	})
	if err != nil {
		return nil, err
	}
	if added {
		c.Logf("%s joined community %s", userID, communityID)
	}
	return c.GetDetails(communityID)
}

func (c *communityService) Leave(communityID, userID string) (*CommunityDetails, error) {
	community, err := c.load(communityID)
	if err != nil {
		return nil, err
	}
	if !community.HasMember(userID) {
		return nil, fail(ErrNotMember, "You are not a member of this community")
	}
	err = c.storage.Atomic(func(tx *data.StorageManager) error {
		if err := tx.GetCommunityRepository().RemoveMember(communityID, userID); err != nil {
			return err
		}
		return tx.GetLastSeenRepository().Delete(conversation.KindCommunity.String(), communityID, userID)
	})
	if err != nil {
		return nil, err
	}
	c.Logf("%s left community %s", userID, communityID)
	c.notifier.Evict(conversation.Community{CommunityID: communityID}, userID)
	return c.GetDetails(communityID)
}

func (c *communityService) SendMessage(communityID, senderID string, in MessageInput) (*entity.Message, error) {
	return sendToConversation(c.storage, c.now, conversation.Community{CommunityID: communityID}, senderID, in)
}

func (c *communityService) History(communityID, userID string) ([]ConversationMessageView, error) {
	messages, err := c.visibility.History(conversation.Community{CommunityID: communityID}, userID)
	if err != nil {
		return nil, err
	}
	return conversationViews(c.storage, messages, userID)
}

func (c *communityService) MarkRead(communityID, userID string) error {
	return c.visibility.MarkRead(conversation.Community{CommunityID: communityID}, userID)
}

func (c *communityService) IsMember(communityID, userID string) (bool, error) {
	return isMember(c.storage, conversation.Community{CommunityID: communityID}, userID)
}
