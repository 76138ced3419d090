package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/events"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

type BlockService struct {
	users     *repository.UserRepository
	current   CurrentProfile
	selection *ChatSelectionState
	events    events.Publisher
	log       *zap.SugaredLogger
}

func NewBlockService(users *repository.UserRepository, current CurrentProfile, selection *ChatSelectionState, pub events.Publisher, log *zap.SugaredLogger) *BlockService {
	if pub == nil {
		pub = events.Nop()
	}
	return &BlockService{users: users, current: current, selection: selection, events: pub, log: utils.OrNop(log)}
}

// ToggleBlock blocks or unblocks the open thread's counterpart in the
// current user's profile, then flips the local flag. A failed write leaves
// the local flag untouched; nothing is rolled back or retried.
func (b *BlockService) ToggleBlock(ctx context.Context) (bool, error) {
	me := b.current.Profile()
	if me == nil {
		return false, ErrNotSignedIn
	}
	sel := b.selection.State()
	if !sel.Selected() || sel.Counterpart == nil {
		return false, ErrNoSelection
	}
	target := sel.Counterpart.ID

	var err error
	evType := events.TypeUserBlocked
	if sel.IsReceiverBlocked {
		err = b.users.RemoveBlocked(ctx, me.ID, target)
		evType = events.TypeUserUnblocked
	} else {
		err = b.users.AddBlocked(ctx, me.ID, target)
	}
	if err != nil {
		b.log.Errorw("toggle block", "user_id", me.ID, "target_id", target, "error", err)
		return sel.IsReceiverBlocked, fmt.Errorf("update block list: %w", err)
	}

	b.selection.ToggleLocalBlockFlag()

	if err := b.events.Publish(ctx, events.Event{
		Type:       evType,
		ActorID:    me.ID,
		TargetID:   target,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		b.log.Warnw("publish block event", "error", err)
	}
	return !sel.IsReceiverBlocked, nil
}
