// Package pipe implements the pipeline execution substrate: welding
// section trees into streams, pump lifetimes, output fan-out to taps,
// and dynamic extension of a running topology.
package pipe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// Pipeline runs a welded chain of sections and fans the output out to
// any number of taps. Consumers attach with Tap(); the topology grows
// with Extend().
//
// Use New() to get a new object and modify its Options before the
// first tap enables the pipeline. Close() shuts everything down,
// extensions included, and returns the first failure.
type Pipeline struct {
	*zerolog.Logger

	scope    *scope.Scope
	sections []PipelineSection

	enabled *enabled    // one-shot start flag, shared with extensions
	applied atomic.Bool // true once Options have been applied
	stopped atomic.Bool // true iff Stop() called

	taps   *xsync.MapOf[uint64, *Tap]
	tapseq atomic.Uint64
	evseq  atomic.Uint64

	evmu   sync.RWMutex
	events map[string][]*Handler

	Options Options // pipeline options; modify before the first tap

	// generic Key-Value store shared by the pipeline's sections,
	// always thread-safe
	KV *xsync.MapOf[string, any]
}

// enabled is the pipeline-wide one-shot that wakes the output drivers.
type enabled struct {
	ch   chan struct{}
	once sync.Once
}

func (e *enabled) set() { e.once.Do(func() { close(e.ch) }) }

// New returns a new pipeline over the given section tree and spawns
// its output driver in a fresh scope under ctx. The driver sleeps
// until a tap opened with Start (the default) enables the pipeline.
//
// The first node may be a stream.Stream[any] instead of a section; see
// Weld for the full shape rules.
func New(ctx context.Context, sections ...PipelineSection) *Pipeline {
	p := &Pipeline{
		scope:    scope.New(ctx),
		sections: sections,
		enabled:  &enabled{ch: make(chan struct{})},
		taps:     xsync.NewMapOf[uint64, *Tap](),
		KV:       xsync.NewMapOf[string, any](),
	}
	nop := zerolog.Nop()
	p.Logger = &nop
	p.Options = DefaultOptions
	p.scope.Go(p.drive)
	return p
}

// Start enables the pipeline without opening a tap. Extensions share
// the flag: enabling any pipeline of a topology enables all of them.
func (p *Pipeline) Start() { p.enabled.set() }

// Started returns true iff the pipeline has been enabled.
func (p *Pipeline) Started() bool {
	select {
	case <-p.enabled.ch:
		return true
	default:
		return false
	}
}

// Stop cancels the pipeline scope. All workers, taps and extensions
// shut down; pending items are dropped.
func (p *Pipeline) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	p.Event(EVENT_STOP, nil)
	p.scope.CancelCause(ErrStopped)
}

// Wait blocks until all pipeline workers have finished and returns the
// first failure, if any.
func (p *Pipeline) Wait() error { return p.scope.Wait() }

// Close stops the pipeline and waits for the shutdown to complete.
func (p *Pipeline) Close() error {
	p.Stop()
	return p.Wait()
}

// Tap opens a new output channel and returns its receive side.
// Multiple taps each receive every output item, by reference: mutating
// an item in one consumer is observable in the others.
//
// Without a config, the tap is a rendezvous channel with no send
// timeout that enables the pipeline. Closing the receive side detaches
// the tap; when the last tap is gone the pipeline shuts down.
func (p *Pipeline) Tap(cfg ...TapConfig) *stream.Receiver[any] {
	c := TapConfig{Start: true}
	if len(cfg) > 0 {
		c = cfg[0]
	}
	tx, rx := stream.Open[any](c.MaxBufferSize)
	t := newTap(tx, c)
	p.taps.Store(p.tapseq.Add(1), t)
	p.Event(EVENT_TAP, t)
	if c.Start {
		p.enabled.set()
	}
	return rx
}

// Extend grows the topology with a child pipeline whose input is a new
// tap of this one. The child shares this pipeline's scope and start
// flag: it is one unit of failure and cancellation with its parent,
// but closing the child's taps only shuts down the child.
//
// The extension does not enable the pipeline by itself; a tap opened
// with Start anywhere in the topology, or Start(), does.
func (p *Pipeline) Extend(sections ...PipelineSection) *Pipeline {
	input := p.Tap(TapConfig{})
	child := &Pipeline{
		scope:    p.scope,
		sections: append([]PipelineSection{input}, sections...),
		enabled:  p.enabled,
		taps:     xsync.NewMapOf[uint64, *Tap](),
		KV:       p.KV,
	}
	nop := zerolog.Nop()
	child.Logger = &nop
	child.Options = DefaultOptions
	p.Event(EVENT_EXTEND, child)
	p.scope.Go(child.drive)
	return child
}

// drive is the output driver: it waits for the start flag, welds the
// section tree, and fans every output item out to the taps. Each
// tap send runs as its own scope worker so a slow consumer cannot
// block its siblings.
func (p *Pipeline) drive(ctx context.Context) error {
	defer p.closeTaps()

	select {
	case <-p.enabled.ch:
	case <-ctx.Done():
		return context.Cause(ctx)
	}

	p.apply(&p.Options)
	p.Event(EVENT_START, nil)
	p.Debug().Msg("pipeline enabled")

	// nested scope for the pumps and the tap sends
	inner := scope.New(p.Logger.WithContext(ctx))

	out, err := Weld(inner, p.sections...)
	if err != nil {
		inner.Cancel()
		inner.Wait()
		return err
	}

	var fatal error
	for {
		item, err := out.Next(inner.Context())
		if err != nil {
			if !errors.Is(err, stream.End) && !scope.IsCancelled(err) {
				fatal = err
			}
			break
		}

		// drop taps whose consumers went away; pruning the last tap
		// shuts the pipeline down
		if live := p.pruneTaps(); live == 0 {
			if p.tapseq.Load() > 0 {
				p.Debug().Msg("pipeline: all taps closed")
				break
			}
			continue // no tap yet, drop the item
		}

		p.taps.Range(func(_ uint64, t *Tap) bool {
			prev, done := t.prev, make(chan struct{})
			t.prev = done
			inner.Go(func(ctx context.Context) error {
				defer close(done)
				if prev != nil {
					select {
					case <-prev:
					case <-ctx.Done():
						return context.Cause(ctx)
					}
				}
				return t.send(ctx, item)
			})
			return true
		})
	}

	// no more output: close the welded stream so the section chain
	// unwinds upstream, then wait out the pumps and pending sends
	stream.Close(out)
	if err := inner.Wait(); fatal == nil {
		fatal = err
	}
	return fatal
}

// pruneTaps drops closed taps and returns the number of live ones.
func (p *Pipeline) pruneTaps() (live int) {
	p.taps.Range(func(id uint64, t *Tap) bool {
		if t.Closed() {
			p.taps.Delete(id)
			p.Event(EVENT_TAP_CLOSED, t)
		} else {
			live++
		}
		return true
	})
	return live
}

// closeTaps closes the send side of every tap exactly once, so
// consumers observe end-of-stream whether the source exhausted or the
// pipeline was shut down.
func (p *Pipeline) closeTaps() {
	p.taps.Range(func(_ uint64, t *Tap) bool {
		t.tx.Close()
		return true
	})
}
