package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/dm-client/internal/auth"
	"github.com/fathima-sithara/dm-client/internal/events"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/store/memstore"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type staticProfile struct {
	mu sync.Mutex
	p  *models.UserProfile
}

func (s *staticProfile) Profile() *models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeUploader) UploadImage(_ context.Context, ownerID, filename string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filename)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/" + ownerID + "/" + filename, nil
}

func (f *fakeUploader) UploadAvatar(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	return f.UploadImage(ctx, ownerID, filename, data)
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakePresence struct {
	mu       sync.Mutex
	online   map[string]bool
	lastSeen map[string]time.Time
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[string]bool{}, lastSeen: map[string]time.Time{}}
}

func (p *fakePresence) MarkOnline(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = true
	return nil
}

func (p *fakePresence) MarkOffline(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, id)
	return nil
}

func (p *fakePresence) SetLastSeen(_ context.Context, id string, t time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen[id] = t
	return nil
}

func (p *fakePresence) IsOnline(_ context.Context, id string) (bool, error) {
	return p.isOnline(id), nil
}

func (p *fakePresence) LastSeen(_ context.Context, id string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen[id], nil
}

func (p *fakePresence) isOnline(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

type fakeAuth struct {
	mu       sync.Mutex
	current  *auth.Identity
	watchers []func(*auth.Identity)
	calls    int
	err      error
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) (*auth.Identity, error) {
	return a.set(email)
}

func (a *fakeAuth) Register(_ context.Context, email, _ string) (*auth.Identity, error) {
	return a.set(email)
}

func (a *fakeAuth) set(email string) (*auth.Identity, error) {
	a.mu.Lock()
	a.calls++
	if a.err != nil {
		a.mu.Unlock()
		return nil, a.err
	}
	id := &auth.Identity{UserID: "uid-" + email, Email: email}
	a.current = id
	ws := append([]func(*auth.Identity){}, a.watchers...)
	a.mu.Unlock()
	for _, fn := range ws {
		fn(id)
	}
	return id, nil
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	a.current = nil
	ws := append([]func(*auth.Identity){}, a.watchers...)
	a.mu.Unlock()
	for _, fn := range ws {
		fn(nil)
	}
	return nil
}

func (a *fakeAuth) OnIdentityChange(fn func(*auth.Identity)) func() {
	a.mu.Lock()
	a.watchers = append(a.watchers, fn)
	cur := a.current
	a.mu.Unlock()
	fn(cur)
	return func() {}
}

// fixture wires the services over one in-memory store.
type fixture struct {
	ctx       context.Context
	rs        *memstore.MemoryStore
	users     *repository.UserRepository
	userChats *repository.UserChatsRepository
	chats     *repository.ChatRepository
	me        *staticProfile
	selection *ChatSelectionState
	uploader  *fakeUploader
	pub       *fakePublisher
	messages  *MessageSync
	threads   *ThreadCreation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rs := memstore.New()
	f := &fixture{
		ctx:       ctx,
		rs:        rs,
		users:     repository.NewUserRepository(rs),
		userChats: repository.NewUserChatsRepository(rs),
		chats:     repository.NewChatRepository(rs),
		me:        &staticProfile{},
		uploader:  &fakeUploader{},
		pub:       &fakePublisher{},
	}
	f.selection = NewChatSelectionState(f.me, f.users, nil, nil)
	f.messages = NewMessageSync(f.chats, f.userChats, f.me, f.selection, f.uploader, f.pub, nil, nil)
	f.threads = NewThreadCreation(f.users, f.chats, f.userChats, f.pub, nil, nil)
	t.Cleanup(f.messages.Close)
	t.Cleanup(f.selection.Deselect)
	return f
}

func (f *fixture) seedUser(t *testing.T, id, username string, blocked ...string) *models.UserProfile {
	t.Helper()
	u := &models.UserProfile{ID: id, Username: username, Email: username + "@example.com", Blocked: blocked}
	require.NoError(t, f.users.Create(f.ctx, u))
	require.NoError(t, f.userChats.Init(f.ctx, id))
	got, err := f.users.GetByID(f.ctx, id)
	require.NoError(t, err)
	return got
}

func (f *fixture) signIn(p *models.UserProfile) {
	f.me.mu.Lock()
	f.me.p = p
	f.me.mu.Unlock()
}

// openChat creates a thread between the signed-in user and other and
// selects it.
func (f *fixture) openChat(t *testing.T, other *models.UserProfile) string {
	t.Helper()
	chatID, err := f.threads.CreateThread(f.ctx, f.me.Profile().ID, other.ID)
	require.NoError(t, err)
	f.selection.SelectThread(f.ctx, chatID, other)
	return chatID
}
