package pipe

import (
	"context"

	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// Weld connects a section tree into a single output stream, spawning
// one pump worker per section in s. Sections are processed left to
// right: each section consumes the output of the node before it over a
// fresh rendezvous channel. A nested Sequence is welded recursively
// with the upstream output prepended as its head.
//
// A stream node is only valid at the head of its sequence; Weld
// reports any other placement as InvalidPipelineShapeError.
//
// Sections that host sub-pipelines (combiners and the like) can call
// Weld themselves to treat arbitrary PipelineSection values as inputs.
func Weld(s *scope.Scope, sections ...PipelineSection) (stream.Stream[any], error) {
	if len(sections) == 0 {
		return nil, &InvalidPipelineShapeError{}
	}

	var input, output stream.Stream[any]
	for _, node := range sections {
		switch n := node.(type) {
		case Section, ThreadSection, ProcessSection, LoopSection:
			tx, rx := stream.Open[any](0)
			sec, in := node, input
			s.Go(func(ctx context.Context) error {
				return pump(ctx, sec, in, tx)
			})
			output = rx

		case Sequence:
			var err error
			if input != nil {
				output, err = Weld(s, append(Sequence{input}, n...)...)
			} else {
				output, err = Weld(s, n...)
			}
			if err != nil {
				return nil, err
			}

		case stream.Stream[any]:
			if output != nil {
				return nil, &InvalidPipelineShapeError{Node: node}
			}
			output = n

		default:
			return nil, &InvalidPipelineShapeError{Node: node}
		}
		input = output
	}

	return output, nil
}
