package pipe

import (
	"context"
	"runtime"

	"github.com/andersea/slurry/stream"
)

// runThread executes a ThreadSection on its own locked OS thread. The
// section sees a blocking iterator view of the input and a blocking
// send view of the output; both park on the pipeline channels, so
// backpressure and cancellation cross the thread boundary unchanged.
func runThread(ctx context.Context, s ThreadSection, input stream.Stream[any], tx *stream.Sender[any]) error {
	errc := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		errc <- s.RunThread(newSyncSource(ctx, input), func(item any) error {
			return tx.Send(ctx, item)
		})
	}()

	// join the worker thread whatever happens: once the scope is
	// cancelled the blocking views fail and RunThread has to return
	return <-errc
}
