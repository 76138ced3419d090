package repository

import (
	"context"
	"fmt"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/store"
)

type ChatRepository struct {
	rs store.RemoteStore
}

func NewChatRepository(rs store.RemoteStore) *ChatRepository {
	return &ChatRepository{rs: rs}
}

func (r *ChatRepository) Create(ctx context.Context, chatID string, t *models.Thread) error {
	if t.Messages == nil {
		t.Messages = []models.Message{}
	}
	return r.rs.SetDocument(ctx, ChatsCollection, chatID, t)
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (*models.Thread, error) {
	doc, err := r.rs.GetDocument(ctx, ChatsCollection, chatID)
	if err != nil {
		return nil, err
	}
	return DecodeThread(doc)
}

func (r *ChatRepository) Subscribe(ctx context.Context, chatID string) (store.Subscription, error) {
	return r.rs.SubscribeDocument(ctx, ChatsCollection, chatID)
}

func (r *ChatRepository) AppendMessage(ctx context.Context, chatID string, m models.Message) error {
	return r.rs.AppendToArrayField(ctx, ChatsCollection, chatID, "messages", m)
}

func DecodeThread(doc *store.Document) (*models.Thread, error) {
	var t models.Thread
	if err := doc.DataTo(&t); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("decode chat %s: %w", doc.ID, err)
	}
	return &t, nil
}
