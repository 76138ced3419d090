package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/events"
	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

type ThreadCreation struct {
	users     *repository.UserRepository
	chats     *repository.ChatRepository
	userChats *repository.UserChatsRepository
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewThreadCreation(users *repository.UserRepository, chats *repository.ChatRepository, userChats *repository.UserChatsRepository,
	pub events.Publisher, m *metrics.Metrics, log *zap.SugaredLogger) *ThreadCreation {
	if pub == nil {
		pub = events.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &ThreadCreation{
		users:     users,
		chats:     chats,
		userChats: userChats,
		events:    pub,
		metrics:   m,
		log:       utils.OrNop(log),
		now:       time.Now,
	}
}

// FindByUsername returns the first profile whose username equals name, or
// nil when there is none. Duplicate usernames are not detected.
func (t *ThreadCreation) FindByUsername(ctx context.Context, name string) (*models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	found, err := t.users.FindByUsername(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// CreateThread writes an empty thread and one index entry in each
// participant's index. The three writes are independent; a failure after
// the first leaves what was written in place.
func (t *ThreadCreation) CreateThread(ctx context.Context, me, other string) (string, error) {
	if me == "" || other == "" {
		return "", fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	if me == other {
		return "", ErrSelfThread
	}

	chatID := utils.NewID()
	now := t.now().UTC()
	if err := t.chats.Create(ctx, chatID, &models.Thread{CreatedAt: now}); err != nil {
		t.log.Errorw("create thread", "chat_id", chatID, "error", err)
		return "", fmt.Errorf("create thread: %w", err)
	}

	for _, p := range [][2]string{{other, me}, {me, other}} {
		entry := models.ThreadIndexEntry{ChatID: chatID, ReceiverID: p[1], UpdatedAt: now}
		if err := t.userChats.Append(ctx, p[0], entry); err != nil {
			t.log.Errorw("append chat index", "user_id", p[0], "chat_id", chatID, "error", err)
			return chatID, fmt.Errorf("append chat index for %s: %w", p[0], err)
		}
	}
	t.metrics.ThreadsCreated.Inc()

	if err := t.events.Publish(ctx, events.Event{
		Type:       events.TypeThreadCreated,
		ChatID:     chatID,
		ActorID:    me,
		TargetID:   other,
		OccurredAt: now,
	}); err != nil {
		t.log.Warnw("publish thread event", "error", err)
	}
	t.log.Infow("thread created", "chat_id", chatID, "user_id", me, "receiver_id", other)
	return chatID, nil
}
