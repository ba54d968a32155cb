package sections

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andersea/slurry/stream"
)

// intsEvery yields 0, 1, 2, ... with a delay before every item.
func intsEvery(first, interval time.Duration) stream.Stream[any] {
	n := 0
	wait := first
	return stream.Func(func(ctx context.Context) (any, error) {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
		wait = interval
		item := n
		n++
		return item, nil
	})
}

// collect drains rx until End, failing the test on any other error.
func collect(t *testing.T, rx stream.Stream[any]) []any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var items []any
	for {
		item, err := rx.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return items
			}
			t.Fatalf("collect: %v", err)
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
