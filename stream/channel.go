package stream

import (
	"context"
	"sync"
)

// Open allocates a bounded channel and returns its two halves. With
// capacity 0 the channel is a rendezvous: Send suspends until a
// receiver is ready, which is the primary backpressure mechanism in a
// pipeline.
//
// Both halves are independently closable. After Sender.Close, buffered
// items can still be received, then Next yields End. After
// Receiver.Close, Send fails with ErrBrokenResource.
func Open[T any](capacity int) (*Sender[T], *Receiver[T]) {
	c := &core[T]{
		items:      make(chan T, capacity),
		sendClosed: make(chan struct{}),
		recvClosed: make(chan struct{}),
	}
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}

// core is shared by the two channel halves. The item channel itself is
// never closed; the side-closed signal channels are, so a close racing
// a blocked operation wakes it instead of panicking.
type core[T any] struct {
	items      chan T
	sendClosed chan struct{}
	recvClosed chan struct{}
	sendOnce   sync.Once
	recvOnce   sync.Once
}

// Sender is the send half of a channel. One logical owner: Send may be
// called from several workers, but Close must happen after the last
// Send completed.
type Sender[T any] struct {
	c *core[T]
}

// Send delivers one item, blocking while the channel is full. It fails
// with ErrBrokenResource once the receive side is closed, with
// ErrClosedResource after Close, and with the context cause when ctx
// is done first. A cancelled Send either delivered the item or returns
// the cancellation; the item is never lost in between.
func (s *Sender[T]) Send(ctx context.Context, item T) error {
	select {
	case <-s.c.sendClosed:
		return ErrClosedResource
	default:
	}
	select {
	case <-s.c.recvClosed:
		return ErrBrokenResource
	default:
	}
	select {
	case s.c.items <- item:
		return nil
	case <-s.c.recvClosed:
		return ErrBrokenResource
	case <-s.c.sendClosed:
		return ErrClosedResource
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Close closes the send side. Buffered items remain receivable.
func (s *Sender[T]) Close() error {
	s.c.sendOnce.Do(func() { close(s.c.sendClosed) })
	return nil
}

// Receiver is the receive half of a channel. It is a Stream and closes
// via the optional Closer capability.
type Receiver[T any] struct {
	c *core[T]
}

// Next receives one item in FIFO order. After the send side closed it
// drains the remaining buffered items, then yields End.
func (r *Receiver[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-r.c.recvClosed:
		return zero, ErrClosedResource
	default:
	}
	// fast path: buffered item available
	select {
	case item := <-r.c.items:
		return item, nil
	default:
	}
	select {
	case item := <-r.c.items:
		return item, nil
	case <-r.c.sendClosed:
		// an item may have been buffered just before the close
		select {
		case item := <-r.c.items:
			return item, nil
		default:
			return zero, End
		}
	case <-r.c.recvClosed:
		return zero, ErrClosedResource
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	}
}

// Close closes the receive side. Senders start failing with
// ErrBrokenResource; items in flight are dropped.
func (r *Receiver[T]) Close() error {
	r.c.recvOnce.Do(func() { close(r.c.recvClosed) })
	return nil
}
