// Package memstore is an in-process store.RemoteStore. It keeps every
// document as encoded BSON so equality for union appends and queries is
// decided on encoded values, the same way the document database does it.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fathima-sithara/dm-client/internal/store"
)

type docKey struct {
	collection string
	id         string
}

type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[docKey]bson.Raw
	subs   map[docKey]map[*store.Feed]struct{}
	writes atomic.Int64
}

func New() *MemoryStore {
	return &MemoryStore{
		docs: make(map[docKey]bson.Raw),
		subs: make(map[docKey]map[*store.Feed]struct{}),
	}
}

// Writes counts successful mutations since creation.
func (s *MemoryStore) Writes() int64 { return s.writes.Load() }

func (s *MemoryStore) GetDocument(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw, ok := s.docs[docKey{collection, id}]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Document{Collection: collection, ID: id, Raw: raw}, nil
}

func (s *MemoryStore) SubscribeDocument(ctx context.Context, collection, id string) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := docKey{collection, id}
	var feed *store.Feed
	feed = store.NewFeed(func() { s.unsubscribe(k, feed) })

	s.mu.Lock()
	set, ok := s.subs[k]
	if !ok {
		set = make(map[*store.Feed]struct{})
		s.subs[k] = set
	}
	set[feed] = struct{}{}
	feed.Publish(s.snapshotLocked(k))
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			feed.Close()
		case <-feed.Done():
		}
	}()
	return feed, nil
}

func (s *MemoryStore) SetDocument(ctx context.Context, collection, id string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := bson.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	k := docKey{collection, id}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(k, raw)
	return nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := docKey{collection, id}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[k]
	if !ok {
		return store.ErrNotFound
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		if raw, err = withField(raw, key, fields[key]); err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
	}
	s.commitLocked(k, raw)
	return nil
}

func (s *MemoryStore) AppendToArrayField(ctx context.Context, collection, id, field string, elem any) error {
	return s.mutateArray(ctx, collection, id, field, elem, func(values []bson.RawValue, v bson.RawValue) ([]bson.RawValue, bool) {
		for _, cur := range values {
			if equalValue(cur, v) {
				return values, false
			}
		}
		return append(values, v), true
	})
}

func (s *MemoryStore) RemoveFromArrayField(ctx context.Context, collection, id, field string, elem any) error {
	return s.mutateArray(ctx, collection, id, field, elem, func(values []bson.RawValue, v bson.RawValue) ([]bson.RawValue, bool) {
		out := values[:0:0]
		for _, cur := range values {
			if !equalValue(cur, v) {
				out = append(out, cur)
			}
		}
		return out, len(out) != len(values)
	})
}

func (s *MemoryStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, b, err := bson.MarshalValue(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}
	want := bson.RawValue{Type: t, Value: b}

	s.mu.RLock()
	out := []*store.Document{}
	for k, raw := range s.docs {
		if k.collection != collection {
			continue
		}
		rv, err := raw.LookupErr(field)
		if err != nil || !equalValue(rv, want) {
			continue
		}
		out = append(out, &store.Document{Collection: collection, ID: k.id, Raw: raw})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) mutateArray(ctx context.Context, collection, id, field string, elem any,
	apply func([]bson.RawValue, bson.RawValue) ([]bson.RawValue, bool)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, b, err := bson.MarshalValue(elem)
	if err != nil {
		return fmt.Errorf("encode element: %w", err)
	}

	k := docKey{collection, id}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[k]
	if !ok {
		return store.ErrNotFound
	}

	var values []bson.RawValue
	if rv, err := raw.LookupErr(field); err == nil && rv.Type != bson.TypeNull {
		if rv.Type != bson.TypeArray {
			return fmt.Errorf("%s/%s: field %q is not an array", collection, id, field)
		}
		if values, err = rv.Array().Values(); err != nil {
			return fmt.Errorf("%s/%s: decode %q: %w", collection, id, field, err)
		}
	}

	values, changed := apply(values, bson.RawValue{Type: t, Value: b})
	if !changed {
		return nil
	}
	arr := make(bson.A, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	if raw, err = withField(raw, field, arr); err != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	s.commitLocked(k, raw)
	return nil
}

func (s *MemoryStore) commitLocked(k docKey, raw bson.Raw) {
	s.docs[k] = raw
	s.writes.Add(1)
	doc := s.snapshotLocked(k)
	for f := range s.subs[k] {
		f.Publish(doc)
	}
}

func (s *MemoryStore) snapshotLocked(k docKey) *store.Document {
	return &store.Document{Collection: k.collection, ID: k.id, Raw: s.docs[k]}
}

func (s *MemoryStore) unsubscribe(k docKey, f *store.Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[k], f)
	if len(s.subs[k]) == 0 {
		delete(s.subs, k)
	}
}

// withField returns a copy of raw with field set to value, keeping the
// position of existing keys.
func withField(raw bson.Raw, field string, value any) (bson.Raw, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	d := make(bson.D, 0, len(elems)+1)
	replaced := false
	for _, e := range elems {
		if e.Key() == field {
			d = append(d, bson.E{Key: field, Value: value})
			replaced = true
			continue
		}
		d = append(d, bson.E{Key: e.Key(), Value: e.Value()})
	}
	if !replaced {
		d = append(d, bson.E{Key: field, Value: value})
	}
	return bson.Marshal(d)
}

func equalValue(a, b bson.RawValue) bool {
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}
