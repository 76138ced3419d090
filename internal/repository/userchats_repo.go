package repository

import (
	"context"
	"fmt"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/store"
)

// UserChatsRepository reads and writes the per-user thread index.
type UserChatsRepository struct {
	rs store.RemoteStore
}

func NewUserChatsRepository(rs store.RemoteStore) *UserChatsRepository {
	return &UserChatsRepository{rs: rs}
}

// Init writes an empty index for a new user.
func (r *UserChatsRepository) Init(ctx context.Context, userID string) error {
	return r.rs.SetDocument(ctx, UserChatsCollection, userID, models.UserChats{Chats: []models.ThreadIndexEntry{}})
}

func (r *UserChatsRepository) Get(ctx context.Context, userID string) (*models.UserChats, error) {
	doc, err := r.rs.GetDocument(ctx, UserChatsCollection, userID)
	if err != nil {
		return nil, err
	}
	return DecodeUserChats(doc)
}

func (r *UserChatsRepository) Subscribe(ctx context.Context, userID string) (store.Subscription, error) {
	return r.rs.SubscribeDocument(ctx, UserChatsCollection, userID)
}

func (r *UserChatsRepository) Append(ctx context.Context, userID string, e models.ThreadIndexEntry) error {
	return r.rs.AppendToArrayField(ctx, UserChatsCollection, userID, "chats", e)
}

// Replace overwrites the whole index array in one update.
func (r *UserChatsRepository) Replace(ctx context.Context, userID string, entries []models.ThreadIndexEntry) error {
	if entries == nil {
		entries = []models.ThreadIndexEntry{}
	}
	return r.rs.UpdateFields(ctx, UserChatsCollection, userID, map[string]any{"chats": entries})
}

func DecodeUserChats(doc *store.Document) (*models.UserChats, error) {
	var uc models.UserChats
	if err := doc.DataTo(&uc); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("decode userchats %s: %w", doc.ID, err)
	}
	return &uc, nil
}
