package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLoadsAndFollowsProfile(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "ali")
	presence := newFakePresence()
	s := NewSessionState(f.users, presence, nil, nil)
	t.Cleanup(func() { s.Close(f.ctx) })

	s.SetIdentity(f.ctx, "u1")
	st := s.State()
	require.NoError(t, st.Err)
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ali", st.Profile.Username)
	assert.True(t, presence.isOnline("u1"))

	require.NoError(t, f.users.AddBlocked(f.ctx, "u1", "u9"))
	require.Eventually(t, func() bool { return s.Profile().HasBlocked("u9") }, waitFor, tick)
}

func TestSessionMissingProfile(t *testing.T) {
	f := newFixture(t)
	s := NewSessionState(f.users, nil, nil, nil)
	t.Cleanup(func() { s.Close(f.ctx) })

	s.SetIdentity(f.ctx, "ghost")
	st := s.State()
	assert.Equal(t, "ghost", st.UserID)
	assert.Nil(t, st.Profile)
	assert.NoError(t, st.Err)
	assert.False(t, st.IsLoading)

	// the profile shows up once it is written
	f.seedUser(t, "ghost", "casper")
	require.Eventually(t, func() bool { return s.Profile() != nil }, waitFor, tick)
}

func TestSessionClearMarksOffline(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "ali")
	presence := newFakePresence()
	s := NewSessionState(f.users, presence, nil, nil)

	s.SetIdentity(f.ctx, "u1")
	s.SetIdentity(f.ctx, "")
	assert.Equal(t, SessionSnapshot{}, s.State())
	assert.False(t, presence.isOnline("u1"))
	assert.Contains(t, presence.lastSeen, "u1")

	require.NoError(t, f.users.AddBlocked(f.ctx, "u1", "u9"))
	require.Never(t, func() bool { return s.Profile() != nil }, 50*tick, tick)
}

func TestSessionBindFollowsIdentity(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "uid-ali@example.com", "ali")
	a := &fakeAuth{}
	s := NewSessionState(f.users, nil, nil, nil)
	t.Cleanup(func() { s.Close(f.ctx) })

	cancel := s.Bind(f.ctx, a)
	defer cancel()
	assert.Empty(t, s.State().UserID)

	_, err := a.SignIn(f.ctx, "ali@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, s.Profile())
	assert.Equal(t, "ali", s.Profile().Username)

	require.NoError(t, a.SignOut(f.ctx))
	assert.Nil(t, s.Profile())
}

func TestSessionDetachKeepsPresence(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "ali")
	presence := newFakePresence()
	s := NewSessionState(f.users, presence, nil, nil)

	s.SetIdentity(f.ctx, "u1")
	s.Detach()
	assert.Nil(t, s.Profile())
	assert.True(t, presence.isOnline("u1"))
}

func TestSessionPresenceOf(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "ali")
	f.seedUser(t, "u2", "bob")
	presence := newFakePresence()
	s := NewSessionState(f.users, presence, nil, nil)
	t.Cleanup(func() { s.Close(f.ctx) })

	st, err := s.PresenceOf(f.ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, PresenceStatus{Known: true}, st)

	s.SetIdentity(f.ctx, "u1")
	st, err = s.PresenceOf(f.ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Online)

	s.SetIdentity(f.ctx, "")
	st, err = s.PresenceOf(f.ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.False(t, st.LastSeen.IsZero())

	untracked := NewSessionState(f.users, nil, nil, nil)
	st, err = untracked.PresenceOf(f.ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Known)
}
