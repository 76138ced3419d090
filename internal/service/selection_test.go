package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/dm-client/internal/models"
)

func TestSelectThreadBlockFlags(t *testing.T) {
	cases := []struct {
		name          string
		myBlocked     []string
		theirBlocked  []string
		wantMeBlocked bool
		wantReceiver  bool
		wantVisible   bool
	}{
		{name: "no blocks", wantVisible: true},
		{name: "i blocked them", myBlocked: []string{"b"}, wantReceiver: true, wantVisible: true},
		{name: "they blocked me", theirBlocked: []string{"a"}, wantMeBlocked: true},
		{name: "both blocked", myBlocked: []string{"b"}, theirBlocked: []string{"a"}, wantMeBlocked: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			me := &staticProfile{p: &models.UserProfile{ID: "a", Blocked: tc.myBlocked}}
			sel := NewChatSelectionState(me, nil, nil, nil)
			other := &models.UserProfile{ID: "b", Username: "bob", Blocked: tc.theirBlocked}

			sel.SelectThread(testContext(t), "c1", other)
			st := sel.State()
			assert.Equal(t, "c1", st.ChatID)
			assert.Equal(t, tc.wantMeBlocked, st.IsCurrentUserBlocked)
			assert.Equal(t, tc.wantReceiver, st.IsReceiverBlocked)
			if tc.wantVisible {
				assert.Equal(t, other, st.Counterpart)
			} else {
				assert.Nil(t, st.Counterpart)
			}
		})
	}
}

func TestRefreshCounterpartKeepsFlags(t *testing.T) {
	me := &staticProfile{p: &models.UserProfile{ID: "a", Blocked: []string{"b"}}}
	sel := NewChatSelectionState(me, nil, nil, nil)
	sel.SelectThread(testContext(t), "c1", &models.UserProfile{ID: "b", Username: "bob"})

	sel.RefreshCounterpart(&models.UserProfile{ID: "b", Username: "bobby", Blocked: []string{"a"}})
	st := sel.State()
	assert.Equal(t, "bobby", st.Counterpart.Username)
	assert.True(t, st.IsReceiverBlocked)
	assert.False(t, st.IsCurrentUserBlocked)
}

func TestToggleLocalBlockFlagAndDeselect(t *testing.T) {
	me := &staticProfile{p: &models.UserProfile{ID: "a"}}
	sel := NewChatSelectionState(me, nil, nil, nil)

	sel.ToggleLocalBlockFlag()
	assert.False(t, sel.State().IsReceiverBlocked, "idle selection has no flag to flip")

	changes, unwatch := sel.Changes()
	defer unwatch()
	sel.SelectThread(testContext(t), "c1", &models.UserProfile{ID: "b"})
	sel.ToggleLocalBlockFlag()
	assert.True(t, sel.State().IsReceiverBlocked)
	sel.ToggleLocalBlockFlag()
	assert.False(t, sel.State().IsReceiverBlocked)
	<-changes

	sel.Deselect()
	assert.False(t, sel.State().Selected())
	assert.Equal(t, Selection{}, sel.State())
}

func TestSelectionFollowsCounterpartProfile(t *testing.T) {
	f := newFixture(t)
	me := f.seedUser(t, "a", "ali")
	bob := f.seedUser(t, "b", "bob")
	f.signIn(me)

	f.selection.SelectThread(f.ctx, "c1", bob)
	require.NoError(t, f.users.AddBlocked(f.ctx, "b", "z"))
	require.Eventually(t, func() bool {
		cp := f.selection.State().Counterpart
		return cp != nil && cp.HasBlocked("z")
	}, waitFor, tick)

	// Snapshots from the previous counterpart stop once another thread is
	// selected.
	carl := f.seedUser(t, "c", "carl")
	f.selection.SelectThread(f.ctx, "c2", carl)
	require.NoError(t, f.users.AddBlocked(f.ctx, "b", "y"))
	require.Never(t, func() bool {
		cp := f.selection.State().Counterpart
		return cp == nil || cp.ID != "c"
	}, 100*tick, tick)
}

func TestChangesUnregister(t *testing.T) {
	sel := NewChatSelectionState(&staticProfile{}, nil, nil, nil)
	ch1, unwatch1 := sel.Changes()
	_, unwatch2 := sel.Changes()
	assert.Equal(t, 2, sel.watchers())

	unwatch2()
	assert.Equal(t, 1, sel.watchers())
	sel.SelectThread(testContext(t), "c1", nil)
	select {
	case <-ch1:
	default:
		t.Fatal("registered watcher was not signalled")
	}

	unwatch1()
	assert.Zero(t, sel.watchers())
}
