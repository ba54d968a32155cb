package sections

import (
	"context"
	"errors"
	"sync"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// Chain outputs the items of each source in turn, draining one before
// starting the next. Any valid pipe.PipelineSection is an allowed
// source. Used as a middle section, the pipeline input is drained
// first unless PlaceInputLast is set; a source that never ends starves
// the sources after it.
type Chain struct {
	Sources        []pipe.PipelineSection
	PlaceInputLast bool
}

// NewChain returns a Chain over the given sources.
func NewChain(sources ...pipe.PipelineSection) *Chain {
	return &Chain{Sources: sources}
}

func (c *Chain) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	sources := c.Sources
	if input != nil {
		if c.PlaceInputLast {
			sources = append(append([]pipe.PipelineSection{}, sources...), input)
		} else {
			sources = append([]pipe.PipelineSection{input}, sources...)
		}
	}

	s := scope.New(ctx)
	for _, source := range sources {
		out, err := pipe.Weld(s, source)
		if err != nil {
			s.Cancel()
			s.Wait()
			return err
		}
		if err := drain(s.Context(), out, output); err != nil {
			s.Cancel()
			s.Wait()
			return err
		}
	}
	return s.Wait()
}

// drain copies out to output until end-of-stream, then closes out.
func drain(ctx context.Context, out stream.Stream[any], output pipe.SendFunc) error {
	defer stream.Close(out)
	for {
		item, err := out.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		if err := output(ctx, item); err != nil {
			return err
		}
	}
}

// Merge iterates all sources in parallel and outputs items from each
// as soon as they arrive. Any valid pipe.PipelineSection is an allowed
// source; sub-pipelines are welded and pumped by the merge. Used as a
// middle section, the pipeline input joins the sources.
type Merge struct {
	Sources []pipe.PipelineSection
}

// NewMerge returns a Merge over the given sources.
func NewMerge(sources ...pipe.PipelineSection) *Merge {
	return &Merge{Sources: sources}
}

func (m *Merge) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	s := scope.New(ctx)

	pull := func(src stream.Stream[any]) {
		s.Go(func(ctx context.Context) error {
			return drain(ctx, src, output)
		})
	}

	if input != nil {
		pull(input)
	}
	for _, source := range m.Sources {
		out, err := pipe.Weld(s, source)
		if err != nil {
			s.Cancel()
			s.Wait()
			return err
		}
		pull(out)
	}
	return s.Wait()
}

// Zip iterates all sources in parallel and outputs a []any tuple each
// time every source produced an item. The zip ends with the first
// source that ends; out-of-sync sources cause backpressure on the
// faster ones. Used as a middle section, the pipeline input is the
// first tuple entry unless PlaceInputLast is set.
type Zip struct {
	Sources        []pipe.PipelineSection
	PlaceInputLast bool
}

// NewZip returns a Zip over the given sources.
func NewZip(sources ...pipe.PipelineSection) *Zip {
	return &Zip{Sources: sources}
}

func (z *Zip) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	sources := z.Sources
	if input != nil {
		if z.PlaceInputLast {
			sources = append(append([]pipe.PipelineSection{}, sources...), input)
		} else {
			sources = append([]pipe.PipelineSection{input}, sources...)
		}
	}

	s := scope.New(ctx)
	welded := make([]stream.Stream[any], len(sources))
	for i, source := range sources {
		out, err := pipe.Weld(s, source)
		if err != nil {
			s.Cancel()
			s.Wait()
			return err
		}
		welded[i] = out
	}
	defer func() {
		for _, w := range welded {
			stream.Close(w)
		}
		s.Cancel()
		s.Wait()
	}()

	for {
		var (
			round = scope.New(s.Context())
			tuple = make([]any, len(welded))
			ended sync.Once
			done  bool
		)
		for i := range welded {
			i := i
			round.Go(func(ctx context.Context) error {
				item, err := welded[i].Next(ctx)
				if err != nil {
					if errors.Is(err, stream.End) {
						// first ended source ends the zip; unblock the rest
						ended.Do(func() { done = true })
						round.Cancel()
						return nil
					}
					return err
				}
				tuple[i] = item
				return nil
			})
		}
		if err := round.Wait(); err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := output(ctx, tuple); err != nil {
			return err
		}
	}
}
