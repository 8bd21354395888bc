package service

import (
	"sync"
	"testing"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/database"
	"whatschat/internal/entity"

	"github.com/stretchr/testify/require"
)

// stepClock moves one second forward on every reading, so consecutive events never tie
type stepClock struct {
	lock sync.Mutex
	t    time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type notified struct {
	conv conversation.Conversation
	msg  *entity.Message
}

type recordingNotifier struct {
	lock     sync.Mutex
	messages []notified
	evicted  []string
}

func (r *recordingNotifier) ConversationMessage(conv conversation.Conversation, msg *entity.Message) {
	r.lock.Lock()
	r.messages = append(r.messages, notified{conv, msg})
	r.lock.Unlock()
}

func (r *recordingNotifier) Evict(conv conversation.Conversation, userID string) {
	r.lock.Lock()
	r.evicted = append(r.evicted, conversation.Room(conv)+"/"+userID)
	r.lock.Unlock()
}

func (r *recordingNotifier) contents() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, n := range r.messages {
		out = append(out, n.msg.Content)
	}
	return out
}

type fixture struct {
	storage     *data.StorageManager
	clock       *stepClock
	notifier    *recordingNotifier
	pick        int
	visibility  VisibilityService
	groups      GroupService
	communities CommunityService
	messages    MessageService
}

// newFixture seeds one user per name; the user id is the name itself.
func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	f := &fixture{
		storage:  data.NewStorageManager(db),
		clock:    newStepClock(),
		notifier: &recordingNotifier{},
	}
	t.Cleanup(func() { f.storage.Close() })

	picker := func(n int) int { return f.pick % n }
	f.visibility = NewVisibilityService(f.storage, f.clock.Now, nil)
	f.groups = NewGroupService(f.storage, f.visibility, f.notifier, f.clock.Now, picker, nil)
	f.communities = NewCommunityService(f.storage, f.visibility, f.notifier, f.clock.Now, nil)
	f.messages = NewMessageService(f.storage, f.visibility, f.clock.Now, nil)

	for _, name := range names {
		now := f.clock.Now()
		require.NoError(t, f.storage.GetUserRepository().Create(&entity.User{
			ID: name, Name: name, Email: name + "@chat.io", CreatedAt: now, UpdatedAt: now,
			Secret: entity.UserSecret{Hash: "x"},
		}))
	}
	return f
}

func text(content string) MessageInput {
	return MessageInput{Content: content, Kind: entity.KindText}
}

func memberIDs(d *GroupDetails) []string {
	ids := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// assertAdminsWithinMembers checks the structural invariant of a group
func assertAdminsWithinMembers(t *testing.T, d *GroupDetails) {
	t.Helper()
	members := map[string]bool{}
	for _, m := range d.Members {
		members[m.ID] = true
	}
	for _, a := range d.Admins {
		require.Truef(t, members[a], "admin %s is not a member", a)
	}
	if len(d.Members) > 0 {
		require.NotEmpty(t, d.Admins, "group with members has no admin")
	}
}
