package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/store"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

// Selection is the open thread. The zero value means no thread is open.
type Selection struct {
	ChatID               string
	Counterpart          *models.UserProfile
	IsCurrentUserBlocked bool
	IsReceiverBlocked    bool
}

func (s Selection) Selected() bool { return s.ChatID != "" }

type CurrentProfile interface {
	Profile() *models.UserProfile
}

type ChatSelectionState struct {
	current CurrentProfile
	users   *repository.UserRepository
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	mu       sync.RWMutex
	state    Selection
	gen      uint64
	stop     func()
	onSelect []func(context.Context)
	notifier
}

// NewChatSelectionState builds the selection container. With a nil users
// repository the counterpart profile is not kept live.
func NewChatSelectionState(current CurrentProfile, users *repository.UserRepository, m *metrics.Metrics, log *zap.SugaredLogger) *ChatSelectionState {
	if m == nil {
		m = metrics.New()
	}
	return &ChatSelectionState{current: current, users: users, metrics: m, log: utils.OrNop(log)}
}

// SelectThread opens chatID with counterpart. When the counterpart has
// blocked the current user the counterpart is dropped and
// IsReceiverBlocked is reported false whatever the current user's own
// block list says.
func (c *ChatSelectionState) SelectThread(ctx context.Context, chatID string, counterpart *models.UserProfile) {
	me := c.current.Profile()
	sel := Selection{ChatID: chatID}
	if counterpart != nil {
		if me != nil {
			sel.IsCurrentUserBlocked = counterpart.HasBlocked(me.ID)
			sel.IsReceiverBlocked = me.HasBlocked(counterpart.ID)
		}
		if sel.IsCurrentUserBlocked {
			sel.IsReceiverBlocked = false
		} else {
			sel.Counterpart = counterpart
		}
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.state = sel
	c.mu.Unlock()
	c.notify()

	if sel.Counterpart != nil && c.users != nil {
		c.watchCounterpart(ctx, sel.Counterpart.ID, gen)
	}
	c.fireSelect(ctx)
}

// OnSelect registers fn to run on the caller's goroutine after every
// SelectThread and Deselect. fn reads the new selection from State.
func (c *ChatSelectionState) OnSelect(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onSelect = append(c.onSelect, fn)
	c.mu.Unlock()
}

func (c *ChatSelectionState) fireSelect(ctx context.Context) {
	c.mu.RLock()
	fns := slices.Clone(c.onSelect)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// RefreshCounterpart swaps the counterpart snapshot. Block flags are left
// as computed by SelectThread.
func (c *ChatSelectionState) RefreshCounterpart(profile *models.UserProfile) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.refresh(gen, profile)
}

func (c *ChatSelectionState) refresh(gen uint64, profile *models.UserProfile) {
	c.mu.Lock()
	if c.gen != gen || !c.state.Selected() {
		c.mu.Unlock()
		return
	}
	c.state.Counterpart = profile
	c.mu.Unlock()
	c.notify()
}

// ToggleLocalBlockFlag flips IsReceiverBlocked. Persisting the block is
// the caller's job.
func (c *ChatSelectionState) ToggleLocalBlockFlag() {
	c.mu.Lock()
	if !c.state.Selected() {
		c.mu.Unlock()
		return
	}
	c.state.IsReceiverBlocked = !c.state.IsReceiverBlocked
	c.mu.Unlock()
	c.notify()
}

func (c *ChatSelectionState) Deselect() {
	c.mu.Lock()
	c.gen++
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.state = Selection{}
	c.mu.Unlock()
	c.notify()
	c.fireSelect(context.Background())
}

func (c *ChatSelectionState) State() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *ChatSelectionState) watchCounterpart(ctx context.Context, uid string, gen uint64) {
	wctx, cancel := context.WithCancel(ctx)
	sub, err := c.users.Subscribe(wctx, uid)
	if err != nil {
		cancel()
		c.log.Warnw("subscribe counterpart", "user_id", uid, "error", err)
		return
	}
	stop := func() {
		cancel()
		sub.Close()
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		stop()
		return
	}
	c.stop = stop
	c.mu.Unlock()

	go func() {
		for doc := range sub.Updates() {
			profile, err := repository.DecodeProfile(doc)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				c.log.Warnw("decode counterpart snapshot", "user_id", uid, "error", err)
				continue
			}
			c.refresh(gen, profile)
			c.metrics.SnapshotsApplied.WithLabelValues("counterpart").Inc()
		}
		if err := sub.Err(); err != nil {
			c.log.Warnw("counterpart subscription ended", "user_id", uid, "error", err)
		}
	}()
}
