package sections

import (
	"context"
	"errors"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

// Map transforms each item with a mapping function. With a Source set,
// Map can be used at the head of a pipeline.
type Map struct {
	Func   func(item any) any
	Source stream.Stream[any]
}

// NewMap returns a Map section over fn, with an optional head source.
func NewMap(fn func(item any) any, source ...stream.Stream[any]) *Map {
	m := &Map{Func: fn}
	if len(source) > 0 {
		m.Source = source[0]
	}
	return m
}

func (m *Map) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = m.Source
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
		if err := output(ctx, m.Func(item)); err != nil {
			return err
		}
	}
}
