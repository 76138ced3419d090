package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/events"
	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/store"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

// imageSummary stands in for the last message of an image-only send.
const imageSummary = "Image"

type Draft struct {
	Text  string
	Image *ImageFile
}

// MessageSync mirrors the open thread's message log and sends into it.
type MessageSync struct {
	chats     *repository.ChatRepository
	userChats *repository.UserChatsRepository
	current   CurrentProfile
	selection *ChatSelectionState
	uploader  ImageUploader
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	now       func() time.Time

	mu       sync.RWMutex
	chatID   string
	messages []models.Message
	loaded   bool
	gen      uint64
	stop     func()
	draft    Draft
	notifier
}

func NewMessageSync(chats *repository.ChatRepository, userChats *repository.UserChatsRepository, current CurrentProfile,
	selection *ChatSelectionState, uploader ImageUploader, pub events.Publisher, m *metrics.Metrics, log *zap.SugaredLogger) *MessageSync {
	if pub == nil {
		pub = events.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &MessageSync{
		chats:     chats,
		userChats: userChats,
		current:   current,
		selection: selection,
		uploader:  uploader,
		events:    pub,
		metrics:   m,
		log:       utils.OrNop(log),
		now:       time.Now,
	}
	if selection != nil {
		selection.OnSelect(s.followSelection)
	}
	return s
}

// followSelection keeps the open thread in step with the selected chat:
// a new chat is opened, and the thread is closed when nothing is selected.
func (s *MessageSync) followSelection(ctx context.Context) {
	chatID := s.selection.State().ChatID
	switch {
	case chatID == "":
		if s.ChatID() != "" {
			s.Close()
		}
	case chatID != s.ChatID():
		if err := s.OpenThread(ctx, chatID); err != nil {
			s.log.Warnw("follow selected thread", "chat_id", chatID, "error", err)
		}
	}
}

// OpenThread follows chatID's message log, replacing the local copy on
// every snapshot. A previously opened thread is closed first.
func (s *MessageSync) OpenThread(ctx context.Context, chatID string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.chatID = chatID
	s.messages = nil
	s.loaded = false
	s.mu.Unlock()
	s.notify()

	wctx, cancel := context.WithCancel(ctx)
	sub, err := s.chats.Subscribe(wctx, chatID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe thread: %w", err)
	}
	stop := func() {
		cancel()
		sub.Close()
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stop()
		return nil
	}
	s.stop = stop
	s.mu.Unlock()

	go s.consume(sub, chatID, gen)
	return nil
}

func (s *MessageSync) consume(sub store.Subscription, chatID string, gen uint64) {
	for doc := range sub.Updates() {
		t, err := repository.DecodeThread(doc)
		var msgs []models.Message
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			s.log.Warnw("decode thread snapshot", "chat_id", chatID, "error", err)
			continue
		default:
			msgs = t.Messages
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.messages = msgs
		s.loaded = true
		s.mu.Unlock()
		s.metrics.SnapshotsApplied.WithLabelValues("thread").Inc()
		s.notify()
	}
	if err := sub.Err(); err != nil {
		s.log.Warnw("thread subscription ended", "chat_id", chatID, "error", err)
	}
}

func (s *MessageSync) Close() {
	s.mu.Lock()
	s.gen++
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.chatID = ""
	s.messages = nil
	s.loaded = false
	s.mu.Unlock()
	s.notify()
}

// ChatID is the thread currently followed, if any.
func (s *MessageSync) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// Loaded reports whether a snapshot of the open thread has been applied.
func (s *MessageSync) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Messages returns the last applied snapshot in append order.
func (s *MessageSync) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *MessageSync) SetDraft(text string) {
	s.mu.Lock()
	s.draft.Text = text
	s.mu.Unlock()
}

func (s *MessageSync) AttachImage(img *ImageFile) {
	s.mu.Lock()
	s.draft.Image = img
	s.mu.Unlock()
}

func (s *MessageSync) Draft() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

func (s *MessageSync) SendDraft(ctx context.Context) (*models.Message, error) {
	d := s.Draft()
	return s.Send(ctx, d.Text, d.Image)
}

func (s *MessageSync) resetDraft() {
	s.mu.Lock()
	s.draft = Draft{}
	s.mu.Unlock()
}

// Send appends a message to the selected thread and updates both
// participants' index entries. It returns (nil, nil) without touching the
// store when there is nothing to send, when either side has blocked the
// other, or when no thread or counterpart is known. Past those checks the
// draft is cleared whatever the outcome.
func (s *MessageSync) Send(ctx context.Context, text string, img *ImageFile) (*models.Message, error) {
	if strings.TrimSpace(text) == "" && img == nil {
		return nil, nil
	}
	sel := s.selection.State()
	if sel.IsCurrentUserBlocked || sel.IsReceiverBlocked {
		return nil, nil
	}
	me := s.current.Profile()
	if !sel.Selected() || me == nil || sel.Counterpart == nil {
		return nil, nil
	}
	defer s.resetDraft()

	msg := models.Message{
		ID:        utils.NewID(),
		SenderID:  me.ID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if img != nil {
		url, err := s.uploader.UploadImage(ctx, me.ID, img.Name, img.Data)
		if err != nil {
			s.metrics.SendFailures.WithLabelValues("upload").Inc()
			s.log.Errorw("upload image", "chat_id", sel.ChatID, "error", err)
			return nil, fmt.Errorf("upload image: %w", err)
		}
		msg.Img = url
	}

	if err := s.chats.AppendMessage(ctx, sel.ChatID, msg); err != nil {
		s.metrics.SendFailures.WithLabelValues("append").Inc()
		s.log.Errorw("append message", "chat_id", sel.ChatID, "error", err)
		return nil, fmt.Errorf("append message: %w", err)
	}
	s.metrics.MessagesSent.Inc()

	summary := text
	if summary == "" {
		summary = imageSummary
	}
	for _, uid := range []string{me.ID, sel.Counterpart.ID} {
		if err := s.updateIndex(ctx, uid, sel.ChatID, summary, uid == me.ID, msg.CreatedAt); err != nil {
			s.metrics.SendFailures.WithLabelValues("index").Inc()
			s.log.Errorw("update chat index", "user_id", uid, "chat_id", sel.ChatID, "error", err)
			return &msg, fmt.Errorf("update chat index for %s: %w", uid, err)
		}
	}

	if err := s.events.Publish(ctx, events.Event{
		Type:       events.TypeMessageSent,
		ChatID:     sel.ChatID,
		ActorID:    me.ID,
		TargetID:   sel.Counterpart.ID,
		HasImage:   msg.Img != "",
		OccurredAt: msg.CreatedAt,
	}); err != nil {
		s.log.Warnw("publish message event", "error", err)
	}
	return &msg, nil
}

// updateIndex rewrites uid's entry for chatID. A missing index or entry is
// left alone.
func (s *MessageSync) updateIndex(ctx context.Context, uid, chatID, summary string, seen bool, at time.Time) error {
	uc, err := s.userChats.Get(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debugw("no chat index", "user_id", uid)
		return nil
	}
	if err != nil {
		return err
	}
	i := uc.Find(chatID)
	if i < 0 {
		s.log.Debugw("chat missing from index", "user_id", uid, "chat_id", chatID)
		return nil
	}
	uc.Chats[i].LastMessage = summary
	uc.Chats[i].IsSeen = seen
	uc.Chats[i].UpdatedAt = at
	return s.userChats.Replace(ctx, uid, uc.Chats)
}
