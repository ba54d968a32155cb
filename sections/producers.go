package sections

import (
	"context"
	"errors"
	"time"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// Repeat yields an item repeatedly at regular intervals.
//
// Used as a middle section, each received item is sent immediately,
// becomes the repeated value, and resets the timer. Used as a producer
// it needs a default value, otherwise it fails with ErrRepeatDefault.
type Repeat struct {
	Interval time.Duration

	def    any
	hasDef bool
}

// NewRepeat returns a Repeat section. An optional default value is the
// first item sent and the value repeated until an input item replaces
// it.
func NewRepeat(interval time.Duration, def ...any) *Repeat {
	r := &Repeat{Interval: interval}
	if len(def) > 0 {
		r.def = def[0]
		r.hasDef = true
	}
	return r
}

func (r *Repeat) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	if input == nil && !r.hasDef {
		return ErrRepeatDefault
	}

	s := scope.New(ctx)

	var cancelPrev context.CancelFunc
	repeat := func(item any) {
		if cancelPrev != nil {
			cancelPrev()
		}
		rctx, cancel := context.WithCancel(s.Context())
		cancelPrev = cancel
		s.Go(func(context.Context) error {
			ticker := time.NewTicker(r.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := output(rctx, item); err != nil {
						return err
					}
				case <-rctx.Done():
					return nil
				}
			}
		})
	}

	if r.hasDef {
		if err := output(s.Context(), r.def); err != nil {
			s.Cancel()
			s.Wait()
			return err
		}
		repeat(r.def)
	}

	if input != nil {
		for {
			item, err := input.Next(s.Context())
			if err != nil {
				if errors.Is(err, stream.End) {
					break
				}
				s.Cancel()
				s.Wait()
				return err
			}
			if err := output(s.Context(), item); err != nil {
				s.Cancel()
				s.Wait()
				return err
			}
			repeat(item)
		}
	}

	// keep repeating the last value until downstream goes away
	return s.Wait()
}
