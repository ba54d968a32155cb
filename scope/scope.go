// Package scope implements the structured concurrency group that owns
// all workers of a pipeline and its extensions.
package scope

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrCancelled is the cancel cause recorded when a scope is cancelled
// deliberately. It is never surfaced from Wait.
var ErrCancelled = errors.New("cancelled")

// Scope groups workers so they can be cancelled together. The first
// non-cancellation error cancels the rest and is re-surfaced at Wait.
// Scopes nest: open a child with New(parent.Context()).
type Scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group
}

// New opens a scope under parent.
func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancelCause(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &Scope{ctx: ctx, cancel: cancel, group: group}
}

// Context returns the scope context. It is done once the scope is
// cancelled or a worker failed.
func (s *Scope) Context() context.Context { return s.ctx }

// Go spawns fn as a scope worker.
func (s *Scope) Go(fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		return fn(s.ctx)
	})
}

// Cancel cancels all workers without recording a failure.
func (s *Scope) Cancel() { s.cancel(ErrCancelled) }

// CancelCause cancels all workers with the given cause. A cause that
// unwraps to ErrCancelled counts as a plain cancellation.
func (s *Scope) CancelCause(cause error) { s.cancel(cause) }

// Wait blocks until every worker finished and returns the first
// failure, if any. Cancellations do not count as failures.
func (s *Scope) Wait() error {
	err := s.group.Wait()
	s.cancel(nil)
	if IsCancelled(err) {
		return nil
	}
	return err
}

// IsCancelled reports whether err is a cancellation rather than a
// failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}
