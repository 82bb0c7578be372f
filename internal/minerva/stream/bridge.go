// Package stream produces the paginated customer listing.
//
// A FetchLoop pulls pages from the store one lease at a time and pushes them
// into a Bridge, a bounded single-producer single-consumer queue. The RPC
// handler on the other side drains the bridge into the client stream. When
// the consumer goes away it detaches the bridge and the loop stops at its
// next hand-off without touching the store again.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/msto63/minerva/internal/minerva/store"
)

// DefaultChannelCapacity is the number of pages buffered between producer
// and consumer
const DefaultChannelCapacity = 128

// ErrClosed is returned by Send once the consumer has detached
var ErrClosed = errors.New("stream bridge closed")

// Page is one batch of customers in ascending id order
type Page []store.Customer

type item struct {
	page Page
	err  error
}

// Bridge is a bounded queue of pages with a terminal error slot. Send, Fail
// and Close belong to the producer; Recv and Detach to the consumer.
type Bridge struct {
	ch       chan item
	detached chan struct{}

	closeOnce  sync.Once
	detachOnce sync.Once
}

// NewBridge creates a bridge buffering up to capacity pages
func NewBridge(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Bridge{
		ch:       make(chan item, capacity),
		detached: make(chan struct{}),
	}
}

// Send enqueues a page, blocking while the buffer is full. It returns
// ErrClosed if the consumer has detached or ctx is done; a detached consumer
// is noticed even when buffer space remains.
func (b *Bridge) Send(ctx context.Context, page Page) error {
	select {
	case <-b.detached:
		return ErrClosed
	default:
	}

	select {
	case b.ch <- item{page: page}:
		return nil
	case <-b.detached:
		return ErrClosed
	case <-ctx.Done():
		return ErrClosed
	}
}

// Fail enqueues a terminal error and closes the bridge. If the consumer is
// gone the error is dropped.
func (b *Bridge) Fail(err error) {
	select {
	case b.ch <- item{err: err}:
	case <-b.detached:
	}
	b.Close()
}

// Close marks the end of the stream. Pages already queued are still
// delivered. Safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.ch)
	})
}

// Recv returns the next page. It returns io.EOF after the last page and the
// terminal error if the producer failed.
func (b *Bridge) Recv(ctx context.Context) (Page, error) {
	select {
	case it, ok := <-b.ch:
		if !ok {
			return nil, io.EOF
		}
		if it.err != nil {
			return nil, it.err
		}
		return it.page, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Detach tells the producer the consumer is gone. Safe to call more than once.
func (b *Bridge) Detach() {
	b.detachOnce.Do(func() {
		close(b.detached)
	})
}

// Detached reports whether the consumer has detached
func (b *Bridge) Detached() bool {
	select {
	case <-b.detached:
		return true
	default:
		return false
	}
}

// Len returns the number of queued items
func (b *Bridge) Len() int {
	return len(b.ch)
}

// Cap returns the bridge capacity
func (b *Bridge) Cap() int {
	return cap(b.ch)
}
