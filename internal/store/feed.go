package store

import "sync"

// Feed is a Subscription backed by a one-slot mailbox. Snapshots are full
// document states, so when the reader falls behind the older pending
// snapshot is replaced by the newer one. Delivery order is preserved.
type Feed struct {
	mu      sync.Mutex
	ch      chan *Document
	done    chan struct{}
	closed  bool
	err     error
	onClose func()
}

func NewFeed(onClose func()) *Feed {
	return &Feed{
		ch:      make(chan *Document, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (f *Feed) Publish(doc *Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- doc:
	default:
		select {
		case <-f.ch:
		default:
		}
		f.ch <- doc
	}
}

func (f *Feed) Updates() <-chan *Document { return f.ch }

// Done is closed once the feed stops delivering.
func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Fail ends the stream with err.
func (f *Feed) Fail(err error) {
	f.shutdown(err)
}

func (f *Feed) Close() error {
	f.shutdown(nil)
	return nil
}

func (f *Feed) shutdown(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.err = err
	close(f.ch)
	close(f.done)
	onClose := f.onClose
	f.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}
