package pipe

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"

	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// the process-wide foreign loop, created once on first use
var (
	loopOnce sync.Once
	theLoop  *foreignLoop
)

// foreignLoop is a daemon execution domain for loop sections. It lives
// for the rest of the process; sections submitted to it run as workers
// owned by the daemon, so one blocked section cannot starve another.
type foreignLoop struct {
	jobs chan func()
}

func ensureLoop() *foreignLoop {
	loopOnce.Do(func() {
		theLoop = &foreignLoop{jobs: make(chan func())}
		go theLoop.run()
	})
	return theLoop
}

func (l *foreignLoop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for job := range l.jobs {
		go job()
	}
}

func (l *foreignLoop) submit(job func()) { l.jobs <- job }

// relay is the one-slot hand-off buffer behind a wakeup connection.
// The byte rendezvous keeps at most one item in flight.
type relay struct {
	mu    sync.Mutex
	items []any
}

func (r *relay) put(item any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *relay) take() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.items[0]
	r.items = r.items[1:]
	return item
}

// loopInput is the loop-side view of the pipeline input: one wakeup
// byte per item, one reply byte per hand-off. A failed read means the
// feeding side closed its half; that is end-of-stream.
type loopInput struct {
	conn net.Conn
	q    *relay
	buf  [1]byte
}

func (in *loopInput) Next(ctx context.Context) (any, error) {
	if _, err := in.conn.Read(in.buf[:]); err != nil {
		return nil, stream.End
	}
	item := in.q.take()
	if _, err := in.conn.Write(in.buf[:]); err != nil {
		return nil, stream.End
	}
	return item, nil
}

// runLoop executes a LoopSection on the foreign loop. Two in-memory
// connection pairs and two relays form the bridge; each side writes
// one byte per item and waits for the reply byte before the next,
// which reproduces rendezvous semantics across the domain boundary.
// Closing a connection half signals closure to the other side.
func runLoop(ctx context.Context, s LoopSection, input stream.Stream[any], tx *stream.Sender[any]) error {
	loop := ensureLoop()

	sendHere, sendThere := net.Pipe()
	recvHere, recvThere := net.Pipe()
	sendq, recvq := &relay{}, &relay{}

	inner := scope.New(ctx)

	if input != nil {
		// feed pipeline input across the boundary
		inner.Go(func(ctx context.Context) error {
			defer sendHere.Close()
			buf := make([]byte, 1)
			for {
				item, err := input.Next(ctx)
				if err != nil {
					if errors.Is(err, stream.End) {
						return nil
					}
					return err
				}
				sendq.put(item)
				if _, err := sendHere.Write(buf); err != nil {
					return nil // loop side gone
				}
				if _, err := sendHere.Read(buf); err != nil {
					return nil
				}
			}
		})
	}

	// pull section output back into the pipeline
	inner.Go(func(ctx context.Context) error {
		defer recvHere.Close()
		buf := make([]byte, 1)
		for {
			if _, err := recvHere.Read(buf); err != nil {
				return nil // zero-byte read: section is done
			}
			if err := tx.Send(ctx, recvq.take()); err != nil {
				return err
			}
			if _, err := recvHere.Write(buf); err != nil {
				return nil
			}
		}
	})

	done := make(chan error, 1)
	loop.submit(func() {
		var in stream.Stream[any]
		if input != nil {
			in = &loopInput{conn: sendThere, q: sendq}
		}
		err := s.RunLoop(ctx, in, func(ctx context.Context, item any) error {
			recvq.put(item)
			buf := make([]byte, 1)
			if _, err := recvThere.Write(buf); err != nil {
				return stream.ErrBrokenResource
			}
			if _, err := recvThere.Read(buf); err != nil {
				return stream.ErrBrokenResource
			}
			return nil
		})
		recvThere.Close()
		sendThere.Close()
		done <- err
	})

	err := <-done
	if werr := inner.Wait(); err == nil {
		err = werr
	}
	return err
}
