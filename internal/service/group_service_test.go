package service

import (
	"sync"
	"testing"

	"whatschat/internal/conversation"
	"whatschat/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroup(t *testing.T) {
	f := newFixture(t, "u1", "u2")

	g, err := f.groups.CreateGroup("u1", "  team  ", "", "", []string{"u2", "u2", "u1"})
	require.NoError(t, err)

	assert.Equal(t, "team", g.Name)
	assert.ElementsMatch(t, []string{"u1", "u2"}, memberIDs(g))
	assert.Equal(t, []string{"u1"}, g.Admins)
	assertAdminsWithinMembers(t, g)

	history, err := f.groups.History(g.ID, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "created this group", history[0].Message)
	assert.Equal(t, string(entity.KindSystem), history[0].MessageType)
	assert.Equal(t, "u1", history[0].SenderID)
	assert.Equal(t, []string{"created this group"}, f.notifier.contents())
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t, "u1")

	_, err := f.groups.CreateGroup("u1", " ab ", "", "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.groups.CreateGroup("u1", "team", "", "", []string{"ghost"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.groups.CreateGroup("ghost", "team", "", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMembersUntilEmpty(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	after, err := f.groups.RemoveMember(g.ID, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, memberIDs(after))
	assert.Equal(t, []string{"u1"}, after.Admins)

	after, err = f.groups.RemoveMember(g.ID, "u1", "u1")
	require.NoError(t, err)
	assert.Nil(t, after)

	_, err = f.groups.GetDetails(g.ID, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"created this group", "removed u2"}, f.notifier.contents())
	assert.Equal(t, []string{"group:" + g.ID + "/u2", "group:" + g.ID + "/u1"}, f.notifier.evicted)
}

func TestRemoveAdminWithAnotherAdminLeft(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2", "u3"})
	require.NoError(t, err)

	g, err = f.groups.AssignAdmin(g.ID, "u1", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, g.Admins)

	g, err = f.groups.RemoveAdmin(g.ID, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, g.Admins)
	assertAdminsWithinMembers(t, g)

	assert.Equal(t, []string{"created this group", "made u2 an admin", "dismissed u2 as admin"}, f.notifier.contents())
}

func TestSuccessionWhenLastAdminLeaves(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	f.pick = 1
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2", "u3"})
	require.NoError(t, err)

	g, err = f.groups.RemoveMember(g.ID, "u1", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u3"}, memberIDs(g))
	// Remaining members share a join date, so they are ordered by id: pick 1 is u3
	assert.Equal(t, []string{"u3"}, g.Admins)
	assertAdminsWithinMembers(t, g)

	history, err := f.groups.History(g.ID, "u2")
	require.NoError(t, err)
	succession := 0
	for _, m := range history {
		if m.Message == "was automatically assigned as the new admin" {
			succession++
			assert.Equal(t, "u3", m.SenderID)
		}
	}
	assert.Equal(t, 1, succession)
	assert.Equal(t, []string{"created this group", "left the group", "was automatically assigned as the new admin"}, f.notifier.contents())
}

func TestSuccessionWhenLastAdminIsDismissed(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	f.pick = 1
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	g, err = f.groups.RemoveAdmin(g.ID, "u1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, g.Admins)
	assertAdminsWithinMembers(t, g)
}

func TestGovernanceRequiresAdmin(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	_, err = f.groups.AddMembers(g.ID, "u2", []string{"u3"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.groups.RemoveMember(g.ID, "u2", "u1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.groups.AssignAdmin(g.ID, "u2", "u2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.groups.UpdateInfo(g.ID, "u2", InfoPatch{Name: strPtr("renamed")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.groups.AssignAdmin(g.ID, "u1", "u3")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.groups.AssignAdmin(g.ID, "u1", "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.groups.RemoveAdmin(g.ID, "u1", "u2")
	assert.ErrorIs(t, err, ErrValidation)

	// A member can always leave
	_, err = f.groups.RemoveMember(g.ID, "u2", "u2")
	assert.NoError(t, err)
}

func TestAddMembers(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3", "u4")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	_, err = f.groups.AddMembers(g.ID, "u1", []string{"u2", "u1"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "All users are already members.", err.Error())

	g, err = f.groups.AddMembers(g.ID, "u1", []string{"u2", "u3", "u4", "u3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4"}, memberIDs(g))
	assert.Equal(t, []string{"u1"}, g.Admins)
	assert.Equal(t, "added u3, u4", f.notifier.contents()[1])
}

func TestNewMemberOnlySeesLaterMessages(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	_, err = f.groups.SendMessage(g.ID, "u2", text("before"))
	require.NoError(t, err)

	_, err = f.groups.AddMembers(g.ID, "u1", []string{"u3"})
	require.NoError(t, err)

	_, err = f.groups.SendMessage(g.ID, "u2", text("after"))
	require.NoError(t, err)

	history, err := f.groups.History(g.ID, "u3")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "added u3", history[0].Message)
	assert.Equal(t, "after", history[1].Message)

	unread, err := f.visibility.UnreadCount(conversation.Group{GroupID: g.ID}, "u3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	_, err = f.groups.SendMessage(g.ID, "u3", MessageInput{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.groups.SendMessage(g.ID, "u3", MessageInput{Content: "x", Kind: entity.KindSystem})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOutsidersCannotReadOrPost(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	g, err := f.groups.CreateGroup("u1", "team", "", "", nil)
	require.NoError(t, err)

	_, err = f.groups.History(g.ID, "u2")
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.groups.SendMessage(g.ID, "u2", text("hi"))
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.groups.GetDetails(g.ID, "u2")
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = f.groups.History("missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := f.groups.IsMember(g.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.groups.IsMember(g.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGroupSummaries(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	summaries, err := f.groups.GetUserGroups("u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "You created this group", *summaries[0].LastMessage)
	assert.Zero(t, summaries[0].UnreadCount)

	summaries, err = f.groups.GetUserGroups("u2")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u1 created this group", *summaries[0].LastMessage)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
	assert.True(t, summaries[0].IsGroup)

	require.NoError(t, f.groups.MarkRead(g.ID, "u2"))
	summaries, err = f.groups.GetUserGroups("u2")
	require.NoError(t, err)
	assert.Zero(t, summaries[0].UnreadCount)
}

func TestUpdateGroupInfo(t *testing.T) {
	f := newFixture(t, "u1")
	g, err := f.groups.CreateGroup("u1", "team", "", "", nil)
	require.NoError(t, err)

	g, err = f.groups.UpdateInfo(g.ID, "u1", InfoPatch{Description: strPtr(" gophers only "), Avatar: strPtr("data:image/png;base64,AA")})
	require.NoError(t, err)
	assert.Equal(t, "team", g.Name)
	assert.Equal(t, "gophers only", g.Description)
	assert.Equal(t, "data:image/png;base64,AA", g.Avatar)

	_, err = f.groups.UpdateInfo(g.ID, "u1", InfoPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrValidation)
}

func strPtr(s string) *string { return &s }

func TestGroupSummaryWithUnknownSender(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2"})
	require.NoError(t, err)

	at := f.clock.Now()
	require.NoError(t, f.storage.GetMessageRepository().Create(&entity.Message{
		ID: "m-ghost", SenderID: "ghost", GroupID: g.ID, Content: "left the group",
		Kind: entity.KindSystem, CreatedAt: at, UpdatedAt: at,
	}))

	summaries, err := f.groups.GetUserGroups("u2")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "left the group", *summaries[0].LastMessage)
	assert.Equal(t, "ghost", *summaries[0].LastMessageSender)
	assert.Empty(t, *summaries[0].LastMessageSenderName)
}

func TestConcurrentMutualDismissalKeepsAnAdmin(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2", "u3"})
	require.NoError(t, err)
	_, err = f.groups.AssignAdmin(g.ID, "u1", "u2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		wg.Add(1)
		go func(i int, operator, target string) {
			defer wg.Done()
			_, errs[i] = f.groups.RemoveAdmin(g.ID, operator, target)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, ErrUnauthorized)
		}
	}
	assert.Equal(t, 1, failed)

	after, err := f.groups.GetDetails(g.ID, "u3")
	require.NoError(t, err)
	require.Len(t, after.Admins, 1)
	assert.Contains(t, []string{"u1", "u2"}, after.Admins[0])
	assertAdminsWithinMembers(t, after)
	for _, c := range f.notifier.contents() {
		assert.NotEqual(t, "was automatically assigned as the new admin", c)
	}
}

func TestConcurrentRemovalsOfSameMember(t *testing.T) {
	f := newFixture(t, "u1", "u2", "u3")
	g, err := f.groups.CreateGroup("u1", "team", "", "", []string{"u2", "u3"})
	require.NoError(t, err)
	_, err = f.groups.AssignAdmin(g.ID, "u1", "u2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, operator := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, operator string) {
			defer wg.Done()
			_, errs[i] = f.groups.RemoveMember(g.ID, operator, "u3")
		}(i, operator)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, ErrNotMember)
		}
	}
	assert.Equal(t, 1, failed)

	history, err := f.groups.History(g.ID, "u1")
	require.NoError(t, err)
	removed := 0
	for _, m := range history {
		if m.Message == "removed u3" {
			removed++
		}
	}
	assert.Equal(t, 1, removed)
}
