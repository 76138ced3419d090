// Package store defines the document store the client mirrors into local
// state: point lookups, live per-document subscriptions, field updates,
// array union/remove and equality queries.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var ErrNotFound = errors.New("document not found")

type RemoteStore interface {
	// GetDocument returns ErrNotFound when the document is absent.
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	// SubscribeDocument emits the current snapshot first and then one
	// snapshot per change. A snapshot of a deleted or never-written document
	// has Exists() == false.
	SubscribeDocument(ctx context.Context, collection, id string) (Subscription, error)
	SetDocument(ctx context.Context, collection, id string, data any) error
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error
	// AppendToArrayField has union semantics: an element equal to one already
	// present is not added again.
	AppendToArrayField(ctx context.Context, collection, id, field string, elem any) error
	RemoveFromArrayField(ctx context.Context, collection, id, field string, elem any) error
	QueryEquals(ctx context.Context, collection, field string, value any) ([]*Document, error)
}

type Subscription interface {
	Updates() <-chan *Document
	// Err is the reason the stream ended, nil after a plain Close.
	Err() error
	Close() error
}

type Document struct {
	Collection string
	ID         string
	Raw        bson.Raw
}

func (d *Document) Exists() bool {
	return d != nil && len(d.Raw) > 0
}

func (d *Document) DataTo(v any) error {
	if !d.Exists() {
		return ErrNotFound
	}
	return bson.Unmarshal(d.Raw, v)
}
