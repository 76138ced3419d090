// Package service holds the client state containers (session, chat
// selection, chat list, open thread) and the operations that mutate the
// remote store on the user's behalf.
//
// Every live subscription is consumed by a single goroutine that applies
// snapshots to its owner's state. Each owner keeps a generation counter;
// a snapshot from a subscription whose scope was replaced is dropped.
package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrUsernameTaken = errors.New("username already taken")
	ErrSelfThread    = errors.New("cannot start a chat with yourself")
	ErrNoSelection   = errors.New("no chat selected")
	ErrChatNotFound  = errors.New("chat not in list")
	ErrNotSignedIn   = errors.New("not signed in")
)

// Presence is the optional online/last-seen tracker.
type Presence interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	SetLastSeen(ctx context.Context, userID string, t time.Time) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (time.Time, error)
}

// PresenceStatus is another user's presence as last read. Known is false
// when no tracker is configured.
type PresenceStatus struct {
	Known    bool      `json:"-" yaml:"-"`
	Online   bool      `json:"online" yaml:"online"`
	LastSeen time.Time `json:"last_seen,omitzero" yaml:"last_seen,omitempty"`
}

// ImageUploader stores an image and returns a URL readable by both
// participants.
type ImageUploader interface {
	UploadImage(ctx context.Context, ownerID, filename string, data []byte) (string, error)
}

// AvatarUploader stores a profile picture.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, ownerID, filename string, data []byte) (string, error)
}

type ImageFile struct {
	Name string
	Data []byte
}

// notifier fans a "something changed" signal out to watchers. Signals are
// coalesced; a watcher only learns that it should re-read state.
type notifier struct {
	nmu   sync.Mutex
	chans map[chan struct{}]struct{}
}

// Changes registers a watcher. The returned func unregisters it and must be
// called once the watcher is done.
func (n *notifier) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.nmu.Lock()
	if n.chans == nil {
		n.chans = make(map[chan struct{}]struct{})
	}
	n.chans[ch] = struct{}{}
	n.nmu.Unlock()
	return ch, func() {
		n.nmu.Lock()
		delete(n.chans, ch)
		n.nmu.Unlock()
	}
}

func (n *notifier) watchers() int {
	n.nmu.Lock()
	defer n.nmu.Unlock()
	return len(n.chans)
}

func (n *notifier) notify() {
	n.nmu.Lock()
	defer n.nmu.Unlock()
	for ch := range n.chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
