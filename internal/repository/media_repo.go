package repository

import (
	"context"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/store"
)

type MediaRepo struct {
	rs store.RemoteStore
}

func NewMediaRepo(rs store.RemoteStore) *MediaRepo {
	return &MediaRepo{rs: rs}
}

func (r *MediaRepo) Insert(ctx context.Context, m *models.Media) error {
	return r.rs.SetDocument(ctx, MediaCollection, m.ID, m)
}

func (r *MediaRepo) GetByID(ctx context.Context, id string) (*models.Media, error) {
	doc, err := r.rs.GetDocument(ctx, MediaCollection, id)
	if err != nil {
		return nil, err
	}
	var m models.Media
	if err := doc.DataTo(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
