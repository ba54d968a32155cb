package sections

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// Window buffers the most recent items and sends a copy of the buffer
// each time a new item arrives. The buffer is trimmed to MaxSize
// items, and to items younger than MaxAge when MaxAge is set.
type Window struct {
	MaxSize int
	MaxAge  time.Duration // zero means no age limit
	Source  stream.Stream[any]
}

// NewWindow returns a sliding window of at most size items.
func NewWindow(size int) *Window {
	return &Window{MaxSize: size}
}

func (w *Window) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = w.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	type aged struct {
		item any
		at   time.Time
	}
	var buf []aged
	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		now := time.Now()
		buf = append(buf, aged{item: item, at: now})
		for len(buf) > w.MaxSize || (w.MaxAge > 0 && now.Sub(buf[0].at) > w.MaxAge) {
			buf = buf[1:]
		}
		window := make([]any, len(buf))
		for i, a := range buf {
			window[i] = a.item
		}
		if err := output(ctx, window); err != nil {
			return err
		}
	}
}

// Group batches items by time interval. The first item of a batch
// starts a timer; when it runs out, or when the batch reaches MaxSize,
// the batch is sent as a []any. Batches are not sent at regular
// intervals; an empty batch is never sent.
type Group struct {
	Interval time.Duration
	MaxSize  int // zero means no size bound
	Source   stream.Stream[any]
}

// NewGroup returns a Group batching over the given interval.
func NewGroup(interval time.Duration) *Group {
	return &Group{Interval: interval}
}

func (g *Group) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = g.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}

		batch := []any{item}
		deadline := time.Now().Add(g.Interval)
		for g.MaxSize == 0 || len(batch) < g.MaxSize {
			bctx, cancel := context.WithDeadline(ctx, deadline)
			item, err := src.Next(bctx)
			cancel()
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					break // timer ran out, flush what we have
				}
				if errors.Is(err, stream.End) {
					return output(ctx, batch)
				}
				return err
			}
			batch = append(batch, item)
		}
		if err := output(ctx, batch); err != nil {
			return err
		}
	}
}

// Delay delays each item by a fixed interval. Items are timestamped on
// arrival and buffered without bound, so a delayed item never holds
// back the upstream.
type Delay struct {
	Interval time.Duration
	Source   stream.Stream[any]
}

// NewDelay returns a Delay of the given interval.
func NewDelay(interval time.Duration) *Delay {
	return &Delay{Interval: interval}
}

func (d *Delay) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = d.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	type timed struct {
		item any
		due  time.Time
	}
	var (
		mu     sync.Mutex
		queue  []timed
		ended  bool
		wake   = make(chan struct{}, 1)
		notify = func() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	)

	s := scope.New(ctx)

	s.Go(func(ctx context.Context) error {
		for {
			item, err := src.Next(ctx)
			if err != nil {
				mu.Lock()
				ended = true
				mu.Unlock()
				notify()
				if errors.Is(err, stream.End) {
					return nil
				}
				return err
			}
			mu.Lock()
			queue = append(queue, timed{item: item, due: time.Now().Add(d.Interval)})
			mu.Unlock()
			notify()
		}
	})

	s.Go(func(ctx context.Context) error {
		for {
			mu.Lock()
			if len(queue) == 0 {
				done := ended
				mu.Unlock()
				if done {
					return nil
				}
				select {
				case <-wake:
					continue
				case <-ctx.Done():
					return context.Cause(ctx)
				}
			}
			head := queue[0]
			queue = queue[1:]
			mu.Unlock()

			if wait := time.Until(head.due); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return context.Cause(ctx)
				}
			}
			if err := output(ctx, head.item); err != nil {
				return err
			}
		}
	})

	return s.Wait()
}
