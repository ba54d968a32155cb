package pipe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andersea/slurry/stream"
)

// mapSection is a minimal native section for substrate tests.
type mapSection struct {
	fn func(item any) any
}

func (m *mapSection) Run(ctx context.Context, input stream.Stream[any], output SendFunc) error {
	if input == nil {
		return errors.New("no input provided")
	}
	for {
		item, err := input.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		if err := output(ctx, m.fn(item)); err != nil {
			return err
		}
	}
}

// failSection fails after sending the given items.
type failSection struct {
	items []any
	err   error
}

func (f *failSection) Run(ctx context.Context, input stream.Stream[any], output SendFunc) error {
	for _, item := range f.items {
		if err := output(ctx, item); err != nil {
			return err
		}
	}
	return f.err
}

// countStream yields 0, 1, 2, ... indefinitely and tracks Close.
type countStream struct {
	n      int
	closed atomic.Bool
}

func (c *countStream) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}
	if c.closed.Load() {
		return nil, stream.End
	}
	n := c.n
	c.n++
	return n, nil
}

func (c *countStream) Close() error {
	c.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (c *countStream) Closed() bool {
	return c.closed.Load()
}

// collect drains rx until End, failing the test on any other error.
func collect(t *testing.T, rx stream.Stream[any]) []any {
	t.Helper()
	items, err := collectErr(rx)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return items
}

// collectErr drains rx until End and returns what it got.
func collectErr(rx stream.Stream[any]) ([]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var items []any
	for {
		item, err := rx.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return items, nil
			}
			return items, err
		}
		items = append(items, item)
	}
}

// collectN reads exactly n items from rx.
func collectN(t *testing.T, rx stream.Stream[any], n int) []any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items := make([]any, 0, n)
	for len(items) < n {
		item, err := rx.Next(ctx)
		if err != nil {
			t.Fatalf("collectN: got %d of %d items: %v", len(items), n, err)
		}
		items = append(items, item)
	}
	return items
}
