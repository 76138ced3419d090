package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/dm-client/internal/models"
)

func newChatList(f *fixture, delay time.Duration) *ChatListSync {
	return NewChatListSync(f.userChats, f.users, f.selection, delay, nil, nil)
}

func usernames(views []ChatView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		if v.User != nil {
			out = append(out, v.User.Username)
		}
	}
	return out
}

func TestChatListJoinsAndSortsByRecency(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "me", "me")
	f.seedUser(t, "a", "ann")
	f.seedUser(t, "b", "ben")

	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.userChats.Replace(f.ctx, "me", []models.ThreadIndexEntry{
		{ChatID: "c1", ReceiverID: "a", UpdatedAt: base},
		{ChatID: "c2", ReceiverID: "b", UpdatedAt: base.Add(time.Minute)},
		{ChatID: "c3", ReceiverID: "ghost", UpdatedAt: base.Add(-time.Minute)},
	}))

	list := newChatList(f, time.Millisecond)
	t.Cleanup(list.Close)
	require.NoError(t, list.Subscribe(f.ctx, "me"))
	require.Eventually(t, func() bool { return len(list.Items()) == 3 }, waitFor, tick)
	assert.True(t, list.Loaded())

	items := list.Items()
	assert.Equal(t, []string{"c2", "c1", "c3"}, []string{items[0].ChatID, items[1].ChatID, items[2].ChatID})
	assert.Equal(t, "ben", items[0].User.Username)
	assert.Nil(t, items[2].User, "missing profiles are kept with no counterpart")

	require.NoError(t, f.userChats.Append(f.ctx, "me", models.ThreadIndexEntry{ChatID: "c4", ReceiverID: "a", UpdatedAt: base.Add(time.Hour)}))
	require.Eventually(t, func() bool {
		items := list.Items()
		return len(items) == 4 && items[0].ChatID == "c4"
	}, waitFor, tick)
}

func TestChatListFilter(t *testing.T) {
	f := newFixture(t)
	me := f.seedUser(t, "me", "me")
	f.signIn(me)
	for id, name := range map[string]string{"u1": "Ali", "u2": "bob", "u3": "Alice"} {
		_, err := f.threads.CreateThread(f.ctx, "me", f.seedUser(t, id, name).ID)
		require.NoError(t, err)
	}

	list := newChatList(f, 100*time.Millisecond)
	t.Cleanup(list.Close)
	require.NoError(t, list.Subscribe(f.ctx, "me"))
	require.Eventually(t, func() bool { return len(list.Items()) == 3 }, waitFor, tick)

	list.SetFilter("a")
	list.SetFilter("ali")
	assert.Len(t, list.Filtered(), 3, "filter applies only after the quiet period")
	require.Eventually(t, func() bool { return list.Filter() == "ali" }, waitFor, tick)
	assert.ElementsMatch(t, []string{"Ali", "Alice"}, usernames(list.Filtered()))

	list.SetFilter("BOB")
	list.FlushFilter()
	assert.Equal(t, []string{"bob"}, usernames(list.Filtered()))

	list.SetFilter("")
	list.FlushFilter()
	assert.Len(t, list.Filtered(), 3)
}

func TestFilterExcludesMissingCounterparts(t *testing.T) {
	items := []ChatView{
		{ThreadIndexEntry: models.ThreadIndexEntry{ChatID: "c1"}},
		{ThreadIndexEntry: models.ThreadIndexEntry{ChatID: "c2"}, User: &models.UserProfile{Username: "Alina"}},
	}
	assert.Len(t, filterViews(items, ""), 2)
	got := filterViews(items, "LIN")
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ChatID)
}

func TestSelectEntryMarksSeenAndSelects(t *testing.T) {
	f := newFixture(t)
	me := f.seedUser(t, "me", "me")
	f.signIn(me)
	bob := f.seedUser(t, "b", "bob")
	chatID, err := f.threads.CreateThread(f.ctx, "me", "b")
	require.NoError(t, err)

	list := newChatList(f, time.Millisecond)
	t.Cleanup(list.Close)
	require.NoError(t, list.Subscribe(f.ctx, "me"))
	require.Eventually(t, func() bool { return len(list.Items()) == 1 }, waitFor, tick)
	require.False(t, list.Items()[0].IsSeen)

	require.NoError(t, list.SelectEntry(f.ctx, chatID))

	idx, err := f.userChats.Get(f.ctx, "me")
	require.NoError(t, err)
	require.Len(t, idx.Chats, 1)
	assert.True(t, idx.Chats[0].IsSeen)

	sel := f.selection.State()
	assert.Equal(t, chatID, sel.ChatID)
	require.NotNil(t, sel.Counterpart)
	assert.Equal(t, bob.ID, sel.Counterpart.ID)

	theirs, err := f.userChats.Get(f.ctx, "b")
	require.NoError(t, err)
	assert.False(t, theirs.Chats[0].IsSeen, "only the owner's index is touched")

	require.Eventually(t, func() bool { return list.Items()[0].IsSeen }, waitFor, tick)
	assert.ErrorIs(t, list.SelectEntry(f.ctx, "nope"), ErrChatNotFound)
}

func TestChatListUnsubscribeStopsUpdates(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "me", "me")
	f.seedUser(t, "a", "ann")

	list := newChatList(f, time.Millisecond)
	t.Cleanup(list.Close)
	require.NoError(t, list.Subscribe(f.ctx, "me"))
	list.Unsubscribe()
	assert.False(t, list.Loaded())

	require.NoError(t, f.userChats.Append(f.ctx, "me", models.ThreadIndexEntry{ChatID: "c1", ReceiverID: "a"}))
	require.Never(t, func() bool { return len(list.Items()) > 0 }, 50*tick, tick)
}
