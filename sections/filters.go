package sections

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/time/rate"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

// Skip discards the first Count items, then passes the rest through.
type Skip struct {
	Count  int
	Source stream.Stream[any]
}

// NewSkip returns a Skip section, with an optional head source.
func NewSkip(count int, source ...stream.Stream[any]) *Skip {
	s := &Skip{Count: count}
	if len(source) > 0 {
		s.Source = source[0]
	}
	return s
}

func (s *Skip) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = s.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	seen := 0
	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		if seen < s.Count {
			seen++
			continue
		}
		if err := output(ctx, item); err != nil {
			return err
		}
	}
}

// Filter passes items for which Func returns true and discards the
// rest.
type Filter struct {
	Func   func(item any) bool
	Source stream.Stream[any]
}

// NewFilter returns a Filter section over fn, with an optional head
// source.
func NewFilter(fn func(item any) bool, source ...stream.Stream[any]) *Filter {
	f := &Filter{Func: fn}
	if len(source) > 0 {
		f.Source = source[0]
	}
	return f
}

func (f *Filter) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = f.Source
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
		if !f.Func(item) {
			continue
		}
		if err := output(ctx, item); err != nil {
			return err
		}
	}
}

// Changes discards items equal to the last item sent. The first item
// is always sent. Items are compared with reflect.DeepEqual.
type Changes struct {
	Source stream.Stream[any]
}

func (c *Changes) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = c.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	var last any
	first := true
	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		if !first && reflect.DeepEqual(item, last) {
			continue
		}
		first = false
		last = item
		if err := output(ctx, item); err != nil {
			return err
		}
	}
}

// RateLimit discards items that arrive faster than one per Interval.
//
// Per-subject limiting is supported two ways: a Subject function
// deriving a key from each item, or a SubjectKey naming an entry of
// map-shaped items. Without either, all items share one limiter.
type RateLimit struct {
	Interval time.Duration

	// Subject derives the rate-limiting key from an item.
	Subject func(item any) (string, error)

	// SubjectKey is looked up in map-shaped items instead, with the
	// value coerced to a string key.
	SubjectKey string

	Source stream.Stream[any]
}

// NewRateLimit returns a RateLimit section with a single shared
// limiter.
func NewRateLimit(interval time.Duration) *RateLimit {
	return &RateLimit{Interval: interval}
}

func (rl *RateLimit) subject(item any) (string, error) {
	switch {
	case rl.Subject != nil:
		return rl.Subject(item)
	case rl.SubjectKey != "":
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return "", err
		}
		return cast.ToStringE(m[rl.SubjectKey])
	default:
		return "", nil
	}
}

func (rl *RateLimit) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = rl.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	limiters := make(map[string]*rate.Limiter)
	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}
		subject, err := rl.subject(item)
		if err != nil {
			return err
		}
		lim := limiters[subject]
		if lim == nil {
			lim = rate.NewLimiter(rate.Every(rl.Interval), 1)
			limiters[subject] = lim
		}
		if !lim.Allow() {
			continue
		}
		if err := output(ctx, item); err != nil {
			return err
		}
	}
}
