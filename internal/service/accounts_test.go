package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccounts(f *fixture, a *fakeAuth) (*AccountService, *SessionState) {
	s := NewSessionState(f.users, nil, nil, nil)
	return NewAccountService(a, f.users, f.userChats, s, f.uploader, nil), s
}

func TestRegisterCreatesProfileAndIndex(t *testing.T) {
	f := newFixture(t)
	a := &fakeAuth{}
	accounts, session := newAccounts(f, a)
	t.Cleanup(func() { session.Close(f.ctx) })

	p, err := accounts.Register(f.ctx, RegisterInput{
		Username: " ali ",
		Email:    "ali@example.com",
		Password: "secret1",
		Avatar:   &ImageFile{Name: "me.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "uid-ali@example.com", p.ID)
	assert.Equal(t, "ali", p.Username)
	assert.Equal(t, "https://cdn.test/uid-ali@example.com/me.png", p.Avatar)

	stored, err := f.users.GetByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ali", stored.Username)
	assert.NotNil(t, stored.Blocked)

	idx, err := f.userChats.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, idx.Chats)

	require.NotNil(t, session.Profile())
	assert.Equal(t, "ali", session.Profile().Username)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "x", "ali")
	a := &fakeAuth{}
	accounts, _ := newAccounts(f, a)

	_, err := accounts.Register(f.ctx, RegisterInput{Username: "ali", Email: "ali@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Zero(t, a.calls)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	a := &fakeAuth{}
	accounts, _ := newAccounts(f, a)

	_, err := accounts.Register(f.ctx, RegisterInput{Username: "al", Email: "not-an-email", Password: "123"})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "Email must be a valid email address")
	assert.Zero(t, a.calls)
	assert.Zero(t, f.rs.Writes())
}

func TestRegisterAuthFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	a := &fakeAuth{err: errors.New("email in use")}
	accounts, _ := newAccounts(f, a)

	_, err := accounts.Register(f.ctx, RegisterInput{Username: "ali", Email: "ali@example.com", Password: "secret1"})
	require.ErrorContains(t, err, "email in use")
	assert.Zero(t, f.rs.Writes())
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "uid-ali@example.com", "ali")
	a := &fakeAuth{}
	accounts, session := newAccounts(f, a)
	t.Cleanup(func() { session.Close(f.ctx) })

	_, err := accounts.Login(f.ctx, LoginInput{Email: "ali", Password: "pw"})
	require.ErrorIs(t, err, ErrValidation)

	id, err := accounts.Login(f.ctx, LoginInput{Email: "ali@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "uid-ali@example.com", id.UserID)
	require.NotNil(t, session.Profile())

	require.NoError(t, accounts.Logout(f.ctx))
	assert.Empty(t, session.State().UserID)
}
