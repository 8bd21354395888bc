/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package service

import (
	"strings"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"

	"github.com/google/uuid"
)

const minNameLength = 3

// Service used to handle groups: creation, governance and the group chat itself.
// Every governance call that changes members or admins writes its system messages
// and the admin succession in one transaction, and notifies connected clients after commit.
type GroupService interface {
	CreateGroup(creatorID, name, description, avatar string, memberIDs []string) (*GroupDetails, error)
	GetDetails(groupID, requesterID string) (*GroupDetails, error) // Requester must be a member
	GetUserGroups(userID string) ([]GroupSummary, error)           // Chat list rows, most recently updated group first
	UpdateInfo(groupID, operatorID string, patch InfoPatch) (*GroupDetails, error)

	AddMembers(groupID, operatorID string, memberIDs []string) (*GroupDetails, error)
	RemoveMember(groupID, operatorID, targetID string) (*GroupDetails, error) // nil details when the group was emptied and deleted
	AssignAdmin(groupID, operatorID, targetID string) (*GroupDetails, error)
	RemoveAdmin(groupID, operatorID, targetID string) (*GroupDetails, error)

	SendMessage(groupID, senderID string, in MessageInput) (*entity.Message, error)
	History(groupID, userID string) ([]ConversationMessageView, error)
	MarkRead(groupID, userID string) error
	IsMember(groupID, userID string) (bool, error)
}

type groupService struct {
	storage    *data.StorageManager
	visibility VisibilityService
	notifier   Notifier
	now        Clock
	pick       Picker
	logger     nlog.Logger
}

func NewGroupService(storage *data.StorageManager, visibility VisibilityService, notifier Notifier, now Clock, pick Picker, logger nlog.Logger) GroupService {
	if now == nil {
		now = SystemClock
	}
	if pick == nil {
		pick = RandomPicker
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = nlog.Nop()
	}
	return &groupService{storage, visibility, notifier, now, pick, logger}
}

func (g *groupService) Logf(format string, v ...any) {
	g.logger.Logf(format, v...)
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < minNameLength {
		return "", fail(ErrValidation, "Name must be at least %d characters long", minNameLength)
	}
	return name, nil
}

// dedupe keeps the first occurrence of every non-empty id, dropping skip
func dedupe(ids []string, skip string) []string {
	seen := map[string]bool{skip: true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (g *groupService) emit(groupID string, messages []*entity.Message) {
	for _, m := range messages {
		g.notifier.ConversationMessage(conversation.Group{GroupID: groupID}, m)
	}
}

func (g *groupService) systemMessage(tx *data.StorageManager, groupID, senderID, content string) (*entity.Message, error) {
	at := g.now()
	msg := &entity.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		GroupID:   groupID,
		Content:   content,
		Kind:      entity.KindSystem,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := tx.GetMessageRepository().Create(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ensureAdmin promotes a random member when the group has members but no admin left.
// Returns the announcement, or nil when nothing had to change.
func (g *groupService) ensureAdmin(tx *data.StorageManager, groupID string) (*entity.Message, error) {
	admins, err := tx.GetGroupRepository().CountAdmins(groupID)
	if err != nil || admins > 0 {
		return nil, err
	}
	group, err := tx.GetGroupRepository().GetByID(groupID)
	if err != nil {
		return nil, err
	}
	if len(group.Members) == 0 {
		return nil, nil
	}
	chosen := group.Members[g.pick(len(group.Members))].UserID
	if err := tx.GetGroupRepository().AddAdmin(groupID, chosen); err != nil {
		return nil, err
	}
	g.Logf("Group %s had no admin left, promoted %s", groupID, chosen)
	return g.systemMessage(tx, groupID, chosen, "was automatically assigned as the new admin")
}

func (g *groupService) loadGroup(groupID string) (*entity.Group, error) {
	group, err := g.storage.GetGroupRepository().GetByID(groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group not found")
	}
	return group, nil
}

func (g *groupService) requireAdmin(groupID, operatorID, action string) (*entity.Group, error) {
	group, err := g.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasAdmin(operatorID) {
		return nil, fail(ErrUnauthorized, "Only admins can %s", action)
	}
	return group, nil
}

// lockGroup row-locks the group and reloads it, so governance checks made
// against the result hold until the transaction commits.
func (g *groupService) lockGroup(tx *data.StorageManager, groupID string) (*entity.Group, error) {
	if err := tx.GetGroupRepository().LockForUpdate(groupID); err != nil {
		return nil, notFoundOr(err, "Group not found")
	}
	group, err := tx.GetGroupRepository().GetByID(groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group not found")
	}
	return group, nil
}

func (g *groupService) lockAdmin(tx *data.StorageManager, groupID, operatorID, action string) (*entity.Group, error) {
	group, err := g.lockGroup(tx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasAdmin(operatorID) {
		return nil, fail(ErrUnauthorized, "Only admins can %s", action)
	}
	return group, nil
}

func (g *groupService) userName(userID string) (string, error) {
	u, err := g.storage.GetUserRepository().GetByID(userID)
	if err != nil {
		return "", notFoundOr(err, "User not found")
	}
	return u.Name, nil
}

func (g *groupService) details(groupID string) (*GroupDetails, error) {
	group, err := g.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	return g.toDetails(group)
}

func (g *groupService) toDetails(group *entity.Group) (*GroupDetails, error) {
	ids := group.MemberIDs()
	users, err := g.storage.GetUserRepository().GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	joined := make(map[string]time.Time, len(group.Members))
	for _, m := range group.Members {
		joined[m.UserID] = m.JoinedAt
	}
	return &GroupDetails{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Avatar:      group.Avatar,
		Admins:      group.AdminIDs(),
		Members:     membersView(indexUsers(users), ids, joined),
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}, nil
}

func (g *groupService) CreateGroup(creatorID, name, description, avatar string, memberIDs []string) (*GroupDetails, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	if _, err := g.userName(creatorID); err != nil {
		return nil, err
	}
	others := dedupe(memberIDs, creatorID)
	found, err := g.storage.GetUserRepository().GetByIDs(others)
	if err != nil {
		return nil, err
	}
	if len(found) != len(others) {
		return nil, fail(ErrNotFound, "Some of the selected users do not exist")
	}

	now := g.now()
	group := &entity.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Avatar:      avatar,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     []entity.GroupMember{{UserID: creatorID, JoinedAt: now}},
		Admins:      []entity.GroupAdmin{{UserID: creatorID}},
	}
	for _, id := range others {
		group.Members = append(group.Members, entity.GroupMember{UserID: id, JoinedAt: now})
	}

	var created *entity.Message
	err = g.storage.Atomic(func(tx *data.StorageManager) error {
		if err := tx.GetGroupRepository().Create(group); err != nil {
			return err
		}
		if err := tx.GetLastSeenRepository().Set(conversation.KindGroup.String(), group.ID, creatorID, now); err != nil {
			return err
		}
		created, err = g.systemMessage(tx, group.ID, creatorID, "created this group")
		return err
	})
	if err != nil {
		g.Logf("Could not create group %q {%v}", name, err)
		return nil, err
	}
	g.Logf("Group %s (%q) created by %s with %d member(s)", group.ID, name, creatorID, len(group.Members))
	g.emit(group.ID, []*entity.Message{created})
	return g.details(group.ID)
}

func (g *groupService) GetDetails(groupID, requesterID string) (*GroupDetails, error) {
	group, err := g.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(requesterID) {
		return nil, fail(ErrNotMember, "You are not a member of this group")
	}
	return g.toDetails(group)
}

func (g *groupService) GetUserGroups(userID string) ([]GroupSummary, error) {
	groups, err := g.storage.GetGroupRepository().GetForUser(userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		conv := conversation.Group{GroupID: group.ID}
		var since time.Time
		for _, m := range group.Members {
			if m.UserID == userID {
				since = m.JoinedAt
			}
		}
		unread, err := g.visibility.UnreadCount(conv, userID)
		if err != nil {
			return nil, err
		}
		summary := GroupSummary{
			ID:          group.ID,
			Name:        group.Name,
			Description: group.Description,
			Avatar:      group.Avatar,
			Admins:      group.AdminIDs(),
			Members:     group.MemberIDs(),
			IsGroup:     true,
			UnreadCount: unread,
		}
		last, err := g.storage.GetMessageRepository().Latest(conversation.KindGroup, group.ID, since)
		if err != nil {
			return nil, err
		}
		if last != nil {
			senderName := ""
			if name, err := g.userName(last.SenderID); err == nil {
				senderName = name
			}
			content := last.Content
			if last.Kind == entity.KindSystem {
				who := senderName
				if last.SenderID == userID {
					who = "You"
				}
				if who != "" {
					content = who + " " + content
				}
			}
			created := last.CreatedAt
			sender := last.SenderID
			summary.LastMessage = &content
			summary.LastMessageTime = &created
			summary.LastMessageSender = &sender
			summary.LastMessageSenderName = &senderName
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (g *groupService) UpdateInfo(groupID, operatorID string, patch InfoPatch) (*GroupDetails, error) {
	if _, err := g.requireAdmin(groupID, operatorID, "update the group info"); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if patch.Name != nil {
		name, err := validName(*patch.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Avatar != nil {
		fields["avatar"] = *patch.Avatar
	}
	if err := g.storage.GetGroupRepository().UpdateInfo(groupID, fields); err != nil {
		return nil, err
	}
	return g.details(groupID)
}

func (g *groupService) AddMembers(groupID, operatorID string, memberIDs []string) (*GroupDetails, error) {
	group, err := g.requireAdmin(groupID, operatorID, "add members")
	if err != nil {
		return nil, err
	}
	requested := dedupe(memberIDs, "")
	users, err := g.storage.GetUserRepository().GetByIDs(requested)
	if err != nil {
		return nil, err
	}
	if len(users) != len(requested) {
		return nil, fail(ErrNotFound, "Some of the selected users do not exist")
	}
	byID := indexUsers(users)

	now := g.now()
	var fresh []entity.GroupMember
	var names []string
	pending := func(group *entity.Group) {
		fresh, names = nil, nil
		for _, id := range requested {
			if group.HasMember(id) {
				continue
			}
			fresh = append(fresh, entity.GroupMember{UserID: id, JoinedAt: now})
			names = append(names, byID[id].Name)
		}
	}
	pending(group)
	if len(fresh) == 0 {
		return nil, fail(ErrValidation, "All users are already members.")
	}

	var added *entity.Message
	err = g.storage.Atomic(func(tx *data.StorageManager) error {
		group, err := g.lockAdmin(tx, groupID, operatorID, "add members")
		if err != nil {
			return err
		}
		pending(group)
		if len(fresh) == 0 {
			return fail(ErrValidation, "All users are already members.")
		}
		if err := tx.GetGroupRepository().AddMembers(groupID, fresh); err != nil {
			return err
		}
		if err := tx.GetGroupRepository().Touch(groupID, now); err != nil {
			return err
		}
		added, err = g.systemMessage(tx, groupID, operatorID, "added "+strings.Join(names, ", "))
		return err
	})
	if err != nil {
		return nil, err
	}
	g.Logf("%s added %d member(s) to group %s", operatorID, len(fresh), groupID)
	g.emit(groupID, []*entity.Message{added})
	return g.details(groupID)
}

func (g *groupService) RemoveMember(groupID, operatorID, targetID string) (*GroupDetails, error) {
	group, err := g.loadGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(targetID) {
		return nil, fail(ErrNotMember, "User is not a member of this group")
	}
	leaving := operatorID == targetID
	if !leaving && !group.HasAdmin(operatorID) {
		return nil, fail(ErrUnauthorized, "Only admins can remove members")
	}
	content := "left the group"
	if !leaving {
		name, err := g.userName(targetID)
		if err != nil {
			return nil, err
		}
		content = "removed " + name
	}

	var announced []*entity.Message
	deleted := false
	err = g.storage.Atomic(func(tx *data.StorageManager) error {
		group, err := g.lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !group.HasMember(targetID) {
			return fail(ErrNotMember, "User is not a member of this group")
		}
		if !leaving && !group.HasAdmin(operatorID) {
			return fail(ErrUnauthorized, "Only admins can remove members")
		}
		left, err := tx.GetGroupRepository().RemoveMember(groupID, targetID)
		if err != nil {
			return err
		}
		if err := tx.GetLastSeenRepository().Delete(conversation.KindGroup.String(), groupID, targetID); err != nil {
			return err
		}
		msg, err := g.systemMessage(tx, groupID, operatorID, content)
		if err != nil {
			return err
		}
		announced = append(announced, msg)
		if left == 0 {
			deleted = true
			return tx.GetGroupRepository().SoftDelete(groupID)
		}
		if err := tx.GetGroupRepository().Touch(groupID, msg.CreatedAt); err != nil {
			return err
		}
		promoted, err := g.ensureAdmin(tx, groupID)
		if err != nil {
			return err
		}
		if promoted != nil {
			announced = append(announced, promoted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.notifier.Evict(conversation.Group{GroupID: groupID}, targetID)
	if deleted {
		g.Logf("Group %s lost its last member and was deleted", groupID)
		return nil, nil
	}
	g.Logf("%s removed %s from group %s", operatorID, targetID, groupID)
	g.emit(groupID, announced)
	return g.details(groupID)
}

func (g *groupService) AssignAdmin(groupID, operatorID, targetID string) (*GroupDetails, error) {
	group, err := g.requireAdmin(groupID, operatorID, "assign admins")
	if err != nil {
		return nil, err
	}
	if !group.HasMember(targetID) {
		return nil, fail(ErrNotMember, "User is not a member of this group")
	}
	if group.HasAdmin(targetID) {
		return nil, fail(ErrValidation, "User is already an admin")
	}
	name, err := g.userName(targetID)
	if err != nil {
		return nil, err
	}

	var made *entity.Message
	err = g.storage.Atomic(func(tx *data.StorageManager) error {
		group, err := g.lockAdmin(tx, groupID, operatorID, "assign admins")
		if err != nil {
			return err
		}
		if !group.HasMember(targetID) {
			return fail(ErrNotMember, "User is not a member of this group")
		}
		if group.HasAdmin(targetID) {
			return fail(ErrValidation, "User is already an admin")
		}
		if err := tx.GetGroupRepository().AddAdmin(groupID, targetID); err != nil {
			return err
		}
		made, err = g.systemMessage(tx, groupID, operatorID, "made "+name+" an admin")
		return err
	})
	if err != nil {
		return nil, err
	}
	g.emit(groupID, []*entity.Message{made})
	return g.details(groupID)
}

func (g *groupService) RemoveAdmin(groupID, operatorID, targetID string) (*GroupDetails, error) {
	group, err := g.requireAdmin(groupID, operatorID, "dismiss admins")
	if err != nil {
		return nil, err
	}
	if !group.HasAdmin(targetID) {
		return nil, fail(ErrValidation, "User is not an admin")
	}
	name, err := g.userName(targetID)
	if err != nil {
		return nil, err
	}

	var announced []*entity.Message
	err = g.storage.Atomic(func(tx *data.StorageManager) error {
		group, err := g.lockAdmin(tx, groupID, operatorID, "dismiss admins")
		if err != nil {
			return err
		}
		if !group.HasAdmin(targetID) {
			return fail(ErrValidation, "User is not an admin")
		}
		if err := tx.GetGroupRepository().RemoveAdmin(groupID, targetID); err != nil {
			return err
		}
		msg, err := g.systemMessage(tx, groupID, operatorID, "dismissed "+name+" as admin")
		if err != nil {
			return err
		}
		announced = append(announced, msg)
		promoted, err := g.ensureAdmin(tx, groupID)
		if err != nil {
			return err
		}
		if promoted != nil {
			announced = append(announced, promoted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.emit(groupID, announced)
	return g.details(groupID)
}

func (g *groupService) SendMessage(groupID, senderID string, in MessageInput) (*entity.Message, error) {
	return sendToConversation(g.storage, g.now, conversation.Group{GroupID: groupID}, senderID, in)
}

func (g *groupService) History(groupID, userID string) ([]ConversationMessageView, error) {
	messages, err := g.visibility.History(conversation.Group{GroupID: groupID}, userID)
	if err != nil {
		return nil, err
	}
	return conversationViews(g.storage, messages, userID)
}

func (g *groupService) MarkRead(groupID, userID string) error {
	return g.visibility.MarkRead(conversation.Group{GroupID: groupID}, userID)
}

func (g *groupService) IsMember(groupID, userID string) (bool, error) {
	return isMember(g.storage, conversation.Group{GroupID: groupID}, userID)
}
