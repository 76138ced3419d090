package repository

import (
	"context"
	"fmt"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/store"
)

type UserRepository struct {
	rs store.RemoteStore
}

func NewUserRepository(rs store.RemoteStore) *UserRepository {
	return &UserRepository{rs: rs}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	doc, err := r.rs.GetDocument(ctx, UsersCollection, id)
	if err != nil {
		return nil, err
	}
	return DecodeProfile(doc)
}

func (r *UserRepository) Create(ctx context.Context, u *models.UserProfile) error {
	if u.Blocked == nil {
		u.Blocked = []string{}
	}
	return r.rs.SetDocument(ctx, UsersCollection, u.ID, u)
}

// FindByUsername returns every profile whose username equals name exactly.
func (r *UserRepository) FindByUsername(ctx context.Context, name string) ([]*models.UserProfile, error) {
	docs, err := r.rs.QueryEquals(ctx, UsersCollection, "username", name)
	if err != nil {
		return nil, err
	}
	out := make([]*models.UserProfile, 0, len(docs))
	for _, d := range docs {
		u, err := DecodeProfile(d)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *UserRepository) Subscribe(ctx context.Context, id string) (store.Subscription, error) {
	return r.rs.SubscribeDocument(ctx, UsersCollection, id)
}

func (r *UserRepository) AddBlocked(ctx context.Context, ownerID, targetID string) error {
	return r.rs.AppendToArrayField(ctx, UsersCollection, ownerID, "blocked", targetID)
}

func (r *UserRepository) RemoveBlocked(ctx context.Context, ownerID, targetID string) error {
	return r.rs.RemoveFromArrayField(ctx, UsersCollection, ownerID, "blocked", targetID)
}

// DecodeProfile returns ErrNotFound for a snapshot of an absent document.
func DecodeProfile(doc *store.Document) (*models.UserProfile, error) {
	var u models.UserProfile
	if err := doc.DataTo(&u); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	if u.ID == "" {
		u.ID = doc.ID
	}
	return &u, nil
}
