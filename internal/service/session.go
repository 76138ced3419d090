package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/auth"
	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/store"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

type SessionSnapshot struct {
	UserID    string
	Profile   *models.UserProfile
	IsLoading bool
	Err       error
}

// IdentitySource reports sign-in and sign-out. The callback gets nil on
// sign-out.
type IdentitySource interface {
	OnIdentityChange(fn func(*auth.Identity)) (cancel func())
}

// SessionState mirrors the signed-in user's profile document.
type SessionState struct {
	users    *repository.UserRepository
	presence Presence
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
	now      func() time.Time

	mu    sync.RWMutex
	state SessionSnapshot
	gen   uint64
	stop  func()
	notifier
}

func NewSessionState(users *repository.UserRepository, presence Presence, m *metrics.Metrics, log *zap.SugaredLogger) *SessionState {
	if m == nil {
		m = metrics.New()
	}
	return &SessionState{
		users:    users,
		presence: presence,
		metrics:  m,
		log:      utils.OrNop(log),
		now:      time.Now,
	}
}

// Bind follows the identity source until the returned cancel is called.
func (s *SessionState) Bind(ctx context.Context, src IdentitySource) (cancel func()) {
	return src.OnIdentityChange(func(id *auth.Identity) {
		uid := ""
		if id != nil {
			uid = id.UserID
		}
		s.SetIdentity(ctx, uid)
	})
}

// SetIdentity loads the profile for uid and keeps it live. An empty uid
// clears the session before returning. Failures end up in State().Err.
func (s *SessionState) SetIdentity(ctx context.Context, uid string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	prev := s.state.UserID
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if uid == "" {
		s.state = SessionSnapshot{}
		s.mu.Unlock()
		s.notify()
		if prev != "" {
			s.markOffline(ctx, prev)
		}
		return
	}
	s.state = SessionSnapshot{UserID: uid, IsLoading: true}
	s.mu.Unlock()
	s.notify()

	if prev != "" && prev != uid {
		s.markOffline(ctx, prev)
	}

	profile, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		profile, err = nil, nil
	}
	if err != nil {
		s.log.Errorw("fetch profile", "user_id", uid, "error", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = SessionSnapshot{UserID: uid, Profile: profile, Err: err}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return
	}
	if prev != uid && s.presence != nil {
		if err := s.presence.MarkOnline(ctx, uid); err != nil {
			s.log.Warnw("presence online", "user_id", uid, "error", err)
		}
	}
	s.watchProfile(ctx, uid, gen)
}

func (s *SessionState) Close(ctx context.Context) {
	s.SetIdentity(ctx, "")
}

// Detach stops following the profile and forgets it without touching
// presence. Used when the process exits while still signed in.
func (s *SessionState) Detach() {
	s.mu.Lock()
	s.gen++
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.state = SessionSnapshot{}
	s.mu.Unlock()
	s.notify()
}

func (s *SessionState) State() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionState) Profile() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Profile
}

func (s *SessionState) watchProfile(ctx context.Context, uid string, gen uint64) {
	wctx, cancel := context.WithCancel(ctx)
	sub, err := s.users.Subscribe(wctx, uid)
	if err != nil {
		cancel()
		s.log.Warnw("subscribe profile", "user_id", uid, "error", err)
		return
	}
	stop := func() {
		cancel()
		sub.Close()
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()

	go func() {
		for doc := range sub.Updates() {
			profile, err := repository.DecodeProfile(doc)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				s.log.Warnw("decode profile snapshot", "user_id", uid, "error", err)
				continue
			}
			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return
			}
			s.state.Profile = profile
			s.mu.Unlock()
			s.metrics.SnapshotsApplied.WithLabelValues("profile").Inc()
			s.notify()
		}
		if err := sub.Err(); err != nil {
			s.log.Warnw("profile subscription ended", "user_id", uid, "error", err)
		}
	}()
}

func (s *SessionState) markOffline(ctx context.Context, uid string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.MarkOffline(ctx, uid); err != nil {
		s.log.Warnw("presence offline", "user_id", uid, "error", err)
	}
	if err := s.presence.SetLastSeen(ctx, uid, s.now()); err != nil {
		s.log.Warnw("presence last seen", "user_id", uid, "error", err)
	}
}

// PresenceOf reads userID's online flag and last-seen time.
func (s *SessionState) PresenceOf(ctx context.Context, userID string) (PresenceStatus, error) {
	if s.presence == nil || userID == "" {
		return PresenceStatus{}, nil
	}
	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		return PresenceStatus{}, fmt.Errorf("read presence: %w", err)
	}
	seen, err := s.presence.LastSeen(ctx, userID)
	if err != nil {
		return PresenceStatus{}, fmt.Errorf("read last seen: %w", err)
	}
	return PresenceStatus{Known: true, Online: online, LastSeen: seen}, nil
}
