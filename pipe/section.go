package pipe

import (
	"context"

	"github.com/andersea/slurry/stream"
)

// SendFunc delivers one item to a section's outbound channel. It
// blocks until a downstream receiver is ready and fails with
// stream.ErrBrokenResource once the receiver went away.
type SendFunc func(ctx context.Context, item any) error

// Section is a stream stage running in the native environment.
//
// The substrate owns the input and output lifetimes: after Run returns,
// both are closed regardless of the exit reason. A section may still
// close them early for backpressure or cleanup.
type Section interface {
	// Run consumes input and feeds results to output. Input is nil for
	// the first section of a pipeline, which is expected to produce its
	// own items. Returning nil signals end-of-stream; any
	// non-cancellation error is fatal to the whole pipeline.
	Run(ctx context.Context, input stream.Stream[any], output SendFunc) error
}

// ThreadSection is a synchronous stage. The substrate executes RunThread
// on its own locked OS thread and bridges the blocking input and output
// views back to the pipeline channels.
type ThreadSection interface {
	RunThread(input *SyncSource, output func(item any) error) error
}

// ProcessSection is a synchronous stage executed in a child process.
//
// Implementations must be registered with RegisterProcessSection and
// carry only gob-encodable exported fields; items crossing the process
// boundary must be gob-encodable as well. Backpressure across the
// boundary is best-effort.
type ProcessSection interface {
	RunProcess(input *SyncSource, output func(item any) error) error
}

// LoopSection is a stage executed on the process-wide foreign loop, a
// daemon created on first use. Input and output cross the loop boundary
// through a byte-wakeup rendezvous, so capacity-0 semantics hold even
// though the section runs in a different execution domain.
type LoopSection interface {
	RunLoop(ctx context.Context, input stream.Stream[any], output SendFunc) error
}

// PipelineSection is one node of the tree accepted by Weld: a Section
// flavor (Section, ThreadSection, ProcessSection, LoopSection), a
// stream.Stream[any] in head position, or a Sequence welded
// recursively. Anything else fails with InvalidPipelineShapeError.
type PipelineSection = any

// Sequence is a nested sub-pipeline. When a sequence follows an
// upstream node, the upstream output becomes the head of the sequence.
type Sequence []PipelineSection

// SyncSource is the blocking iterator view handed to thread and
// process sections. Next blocks for the next item and returns
// stream.End when the feed is exhausted. A nil SyncSource (producer
// section) is empty.
type SyncSource struct {
	next func() (any, error)
}

func (s *SyncSource) Next() (any, error) {
	if s == nil {
		return nil, stream.End
	}
	return s.next()
}

func newSyncSource(ctx context.Context, src stream.Stream[any]) *SyncSource {
	if src == nil {
		return nil
	}
	return &SyncSource{next: func() (any, error) { return src.Next(ctx) }}
}
