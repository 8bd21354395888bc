package repository

import (
	"testing"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/database"
	"whatschat/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, names ...string) {
	t.Helper()
	users := NewSQLUserRepository(db)
	for _, n := range names {
		require.NoError(t, users.Create(&entity.User{ID: n, Name: n, Email: n + "@chat.io", Secret: entity.UserSecret{Hash: "h"}}))
	}
}

func TestUserRepositoryKeepsSecretApart(t *testing.T) {
	db := openDB(t)
	seedUsers(t, db, "alice", "bob")
	repo := NewSQLUserRepository(db)

	u, err := repo.GetByID("alice")
	require.NoError(t, err)
	assert.Empty(t, u.Secret.Hash)

	u, err = repo.GetForLogin("alice@chat.io")
	require.NoError(t, err)
	assert.Equal(t, "h", u.Secret.Hash)

	others, err := repo.GetAllExcept("alice")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "bob", others[0].ID)

	assert.ErrorIs(t, repo.SetAvatar("nobody", "img"), gorm.ErrRecordNotFound)
	require.NoError(t, repo.SetOnline("bob", true))
	u, _ = repo.GetByID("bob")
	assert.True(t, u.IsOnline)
}

func TestGroupRepositoryLastMemberSoftDeletes(t *testing.T) {
	db := openDB(t)
	seedUsers(t, db, "alice", "bob")
	repo := NewSQLGroupRepository(db)

	g := &entity.Group{
		ID:      "g1",
		Name:    "team",
		Members: []entity.GroupMember{{UserID: "alice", JoinedAt: t0}, {UserID: "bob", JoinedAt: t0.Add(time.Minute)}},
		Admins:  []entity.GroupAdmin{{UserID: "alice"}},
	}
	require.NoError(t, repo.Create(g))

	left, err := repo.RemoveMember("g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)

	admins, err := repo.CountAdmins("g1")
	require.NoError(t, err)
	assert.Zero(t, admins)

	left, err = repo.RemoveMember("g1", "bob")
	require.NoError(t, err)
	assert.Zero(t, left)
	require.NoError(t, repo.SoftDelete("g1"))

	_, err = repo.GetByID("g1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGroupRepositoryAddMembersKeepsJoinDate(t *testing.T) {
	db := openDB(t)
	seedUsers(t, db, "alice", "bob")
	repo := NewSQLGroupRepository(db)

	require.NoError(t, repo.Create(&entity.Group{ID: "g1", Name: "team", Members: []entity.GroupMember{{UserID: "alice", JoinedAt: t0}}}))
	require.NoError(t, repo.AddMembers("g1", []entity.GroupMember{{UserID: "alice", JoinedAt: t0.Add(time.Hour)}, {UserID: "bob", JoinedAt: t0.Add(time.Hour)}}))

	m, err := repo.GetMember("g1", "alice")
	require.NoError(t, err)
	assert.True(t, m.JoinedAt.Equal(t0))

	groups, err := repo.GetForUser("bob")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}

func TestGroupRepositoryLockForUpdate(t *testing.T) {
	db := openDB(t)
	seedUsers(t, db, "alice")
	require.NoError(t, NewSQLGroupRepository(db).Create(&entity.Group{ID: "g1", Name: "team", Members: []entity.GroupMember{{UserID: "alice", JoinedAt: t0}}}))

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewSQLGroupRepository(tx).LockForUpdate("g1")
	})
	require.NoError(t, err)

	repo := NewSQLGroupRepository(db)
	assert.ErrorIs(t, repo.LockForUpdate("missing"), gorm.ErrRecordNotFound)

	require.NoError(t, repo.SoftDelete("g1"))
	assert.ErrorIs(t, repo.LockForUpdate("g1"), gorm.ErrRecordNotFound)
}

func TestLastSeenUpsert(t *testing.T) {
	repo := NewSQLLastSeenRepository(openDB(t))

	at, err := repo.Get("group", "g1", "alice")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	require.NoError(t, repo.Set("group", "g1", "alice", t0))
	require.NoError(t, repo.Set("group", "g1", "alice", t0.Add(time.Minute)))
	require.NoError(t, repo.SetIfAbsent("group", "g1", "alice", t0.Add(time.Hour)))

	at, err = repo.Get("group", "g1", "alice")
	require.NoError(t, err)
	assert.True(t, at.Equal(t0.Add(time.Minute)))

	require.NoError(t, repo.Delete("group", "g1", "alice"))
	at, _ = repo.Get("group", "g1", "alice")
	assert.True(t, at.IsZero())
}

func TestMarkDirectReadLeavesUpdatedAt(t *testing.T) {
	repo := NewSQLMessageRepository(openDB(t))

	msg := &entity.Message{ID: "m1", SenderID: "bob", RecipientID: "alice", Content: "hi", Kind: entity.KindText, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, repo.Create(msg))

	n, err := repo.CountUnreadDirect("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	changed, err := repo.MarkDirectRead("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	changed, err = repo.MarkDirectRead("bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, changed)

	msgs, err := repo.Between("alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead)
	assert.True(t, msgs[0].UpdatedAt.Equal(t0))
}

func TestConversationQueriesAreJoinGated(t *testing.T) {
	repo := NewSQLMessageRepository(openDB(t))

	for i, sender := range []string{"alice", "bob", "alice"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(&entity.Message{
			ID: string(rune('a' + i)), SenderID: sender, GroupID: "g1", Content: "x", Kind: entity.KindText, CreatedAt: at, UpdatedAt: at,
		}))
	}

	msgs, err := repo.InConversation(conversation.KindGroup, "g1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	latest, err := repo.Latest(conversation.KindGroup, "g1", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.ID)

	none, err := repo.Latest(conversation.KindCommunity, "g1", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, none)

	unread, err := repo.CountUnread(conversation.KindGroup, "g1", "bob", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	_, err = repo.InConversation(conversation.KindDirect, "bob", time.Time{})
	assert.Error(t, err)
}
