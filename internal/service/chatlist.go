package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/store"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

// ChatView is an index entry joined with its counterpart's profile. User
// is nil when the counterpart's profile does not exist.
type ChatView struct {
	models.ThreadIndexEntry `yaml:",inline"`
	User                    *models.UserProfile `json:"user,omitempty" yaml:"user,omitempty"`
}

type ChatListSync struct {
	userChats *repository.UserChatsRepository
	users     *repository.UserRepository
	selection *ChatSelectionState
	debounce  *Debouncer
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger

	mu     sync.RWMutex
	owner  string
	items  []ChatView
	loaded bool
	filter string
	gen    uint64
	stop   func()
	notifier
}

func NewChatListSync(userChats *repository.UserChatsRepository, users *repository.UserRepository, selection *ChatSelectionState,
	filterDelay time.Duration, m *metrics.Metrics, log *zap.SugaredLogger) *ChatListSync {
	if m == nil {
		m = metrics.New()
	}
	return &ChatListSync{
		userChats: userChats,
		users:     users,
		selection: selection,
		debounce:  NewDebouncer(filterDelay),
		metrics:   m,
		log:       utils.OrNop(log),
	}
}

// Subscribe follows uid's thread index. Each snapshot is joined with the
// counterpart profiles and published only once every lookup has finished;
// a snapshot whose join fails is skipped.
func (l *ChatListSync) Subscribe(ctx context.Context, uid string) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	l.owner = uid
	l.items = nil
	l.loaded = false
	l.mu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	sub, err := l.userChats.Subscribe(wctx, uid)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe chat list: %w", err)
	}
	stop := func() {
		cancel()
		sub.Close()
	}

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		stop()
		return nil
	}
	l.stop = stop
	l.mu.Unlock()

	go l.consume(wctx, sub, uid, gen)
	return nil
}

func (l *ChatListSync) consume(ctx context.Context, sub store.Subscription, uid string, gen uint64) {
	for doc := range sub.Updates() {
		uc, err := repository.DecodeUserChats(doc)
		if errors.Is(err, store.ErrNotFound) {
			uc, err = &models.UserChats{}, nil
		}
		if err != nil {
			l.log.Warnw("decode chat list snapshot", "user_id", uid, "error", err)
			continue
		}

		views, err := l.join(ctx, uc.Chats)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Warnw("resolve chat list", "user_id", uid, "error", err)
			}
			continue
		}

		l.mu.Lock()
		if l.gen != gen {
			l.mu.Unlock()
			return
		}
		l.items = views
		l.loaded = true
		l.mu.Unlock()
		l.metrics.SnapshotsApplied.WithLabelValues("chat_list").Inc()
		l.notify()
	}
	if err := sub.Err(); err != nil {
		l.log.Warnw("chat list subscription ended", "user_id", uid, "error", err)
	}
}

func (l *ChatListSync) join(ctx context.Context, entries []models.ThreadIndexEntry) ([]ChatView, error) {
	views := make([]ChatView, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		views[i].ThreadIndexEntry = e
		g.Go(func() error {
			u, err := l.users.GetByID(gctx, e.ReceiverID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("lookup %s: %w", e.ReceiverID, err)
			}
			views[i].User = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(a, b int) bool {
		return views[a].UpdatedAt.After(views[b].UpdatedAt)
	})
	return views, nil
}

func (l *ChatListSync) Unsubscribe() {
	l.mu.Lock()
	l.gen++
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	l.owner = ""
	l.items = nil
	l.loaded = false
	l.mu.Unlock()
	l.notify()
}

func (l *ChatListSync) Close() {
	l.debounce.Stop()
	l.Unsubscribe()
}

// Loaded reports whether a snapshot has been joined and applied since the
// last Subscribe.
func (l *ChatListSync) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Items is the full list, most recently updated first.
func (l *ChatListSync) Items() []ChatView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ChatView(nil), l.items...)
}

// SetFilter applies text after the debounce delay; a newer call replaces a
// pending one.
func (l *ChatListSync) SetFilter(text string) {
	l.debounce.Trigger(func() {
		l.mu.Lock()
		l.filter = text
		l.mu.Unlock()
		l.notify()
	})
}

// FlushFilter applies a pending filter immediately.
func (l *ChatListSync) FlushFilter() {
	l.debounce.Flush()
}

func (l *ChatListSync) Filter() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filter
}

// Filtered returns the items whose counterpart username contains the
// applied filter, ignoring case.
func (l *ChatListSync) Filtered() []ChatView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filterViews(l.items, l.filter)
}

func filterViews(items []ChatView, filter string) []ChatView {
	if filter == "" {
		return append(make([]ChatView, 0, len(items)), items...)
	}
	needle := strings.ToLower(filter)
	out := make([]ChatView, 0, len(items))
	for _, v := range items {
		if v.User != nil && strings.Contains(strings.ToLower(v.User.Username), needle) {
			out = append(out, v)
		}
	}
	return out
}

// SelectEntry marks chatID seen in the local copy of the index, writes the
// whole index back in one update and opens the thread. Concurrent writers
// to the same index race; the last write wins.
func (l *ChatListSync) SelectEntry(ctx context.Context, chatID string) error {
	l.mu.RLock()
	owner := l.owner
	idx := -1
	entries := make([]models.ThreadIndexEntry, len(l.items))
	for i, v := range l.items {
		entries[i] = v.ThreadIndexEntry
		if v.ChatID == chatID {
			idx = i
		}
	}
	var counterpart *models.UserProfile
	if idx >= 0 {
		counterpart = l.items[idx].User
	}
	l.mu.RUnlock()

	if idx < 0 {
		return ErrChatNotFound
	}
	entries[idx].IsSeen = true
	if err := l.userChats.Replace(ctx, owner, entries); err != nil {
		l.log.Errorw("mark chat seen", "user_id", owner, "chat_id", chatID, "error", err)
		return fmt.Errorf("mark chat seen: %w", err)
	}
	l.selection.SelectThread(ctx, chatID, counterpart)
	return nil
}
