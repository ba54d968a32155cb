package pipe

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// pump runs one section in its declared environment and owns the
// section's channel lifetimes: whatever the exit reason, the input
// (when closable) and the output send side are closed exactly once.
// Keeping lifetime management here is what lets sections stay small.
func pump(ctx context.Context, section PipelineSection, input stream.Stream[any], tx *stream.Sender[any]) error {
	log := zerolog.Ctx(ctx)

	var err error
	switch s := section.(type) {
	case Section:
		err = s.Run(ctx, input, tx.Send)
	case ThreadSection:
		err = runThread(ctx, s, input, tx)
	case ProcessSection:
		err = runProcess(ctx, s, input, tx)
	case LoopSection:
		err = runLoop(ctx, s, input, tx)
	default:
		err = &InvalidPipelineShapeError{Node: section}
	}

	// a closed downstream is a normal exit, everything else is fatal
	if errors.Is(err, stream.ErrBrokenResource) || scope.IsCancelled(err) {
		err = nil
	}

	if input != nil {
		stream.Close(input)
	}
	tx.Close()

	if err != nil {
		log.Debug().Err(err).Msgf("pump: section %T failed", section)
		return err
	}
	log.Trace().Msgf("pump: section %T done", section)
	return nil
}
