package pipe

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"reflect"
	"sync"

	"github.com/andersea/slurry/scope"
	"github.com/andersea/slurry/stream"
)

// workerEnv marks a process as a section worker spawned by runProcess.
const workerEnv = "SLURRY_PROCESS_SECTION"

// process section registry; a section must be registered on both the
// parent and the child side (package init is the natural place)
var (
	procMu  sync.Mutex
	procReg = map[reflect.Type]bool{}
)

// RegisterProcessSection makes a ProcessSection implementation
// transferable to child workers. The concrete type is gob-registered;
// only its exported fields survive the crossing.
func RegisterProcessSection(section ProcessSection) {
	gob.Register(section)
	procMu.Lock()
	defer procMu.Unlock()
	procReg[reflect.TypeOf(section)] = true
}

func processRegistered(section ProcessSection) bool {
	procMu.Lock()
	defer procMu.Unlock()
	return procReg[reflect.TypeOf(section)]
}

// procHeader opens the parent→child stream: the section itself plus
// whether an item feed follows.
type procHeader struct {
	HasInput bool
	Section  ProcessSection
}

// procFrame carries one item across the process boundary. An End frame
// marks end-of-stream; a child-side failure travels back in Err.
type procFrame struct {
	End  bool
	Err  string
	Item any
}

// runProcess executes a ProcessSection in a child process: a re-exec
// of the current binary with the worker environment set. Items cross
// the boundary gob-encoded over the child's stdin and stdout; an empty
// End frame is the end-of-stream sentinel in both directions.
// Backpressure is limited to what the OS pipe buffers provide.
//
// The host binary must call ProcessMain() early in main() for the
// child half to run.
func runProcess(ctx context.Context, s ProcessSection, input stream.Stream[any], tx *stream.Sender[any]) error {
	if !processRegistered(s) {
		return fmt.Errorf("process section %T not registered", s)
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(), workerEnv+"=1")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	defer cmd.Wait()

	enc := gob.NewEncoder(stdin)
	dec := gob.NewDecoder(stdout)

	if err := enc.Encode(&procHeader{HasInput: input != nil, Section: s}); err != nil {
		return fmt.Errorf("process section %T not serializable: %w", s, err)
	}

	inner := scope.New(ctx)
	if input != nil {
		// drain the input into the child
		inner.Go(func(ctx context.Context) error {
			for {
				item, err := input.Next(ctx)
				if err != nil {
					if errors.Is(err, stream.End) {
						return enc.Encode(&procFrame{End: true})
					}
					return err
				}
				if err := enc.Encode(&procFrame{Item: item}); err != nil {
					// a closing pipe after shutdown is not a failure
					if ctx.Err() != nil {
						return context.Cause(ctx)
					}
					return fmt.Errorf("item not serializable: %w", err)
				}
			}
		})
	}

	var fatal error
	for {
		var f procFrame
		if err := dec.Decode(&f); err != nil {
			if ctx.Err() != nil {
				fatal = context.Cause(ctx)
			} else {
				fatal = fmt.Errorf("process section %T: %w", s, err)
			}
			break
		}
		if f.End {
			if f.Err != "" {
				fatal = fmt.Errorf("process section %T: %s", s, f.Err)
			}
			break
		}
		if err := tx.Send(ctx, f.Item); err != nil {
			fatal = err
			break
		}
	}

	// the child is done; release a sender still blocked on a child
	// that stopped reading
	inner.Cancel()
	stdin.Close()
	if err := inner.Wait(); fatal == nil {
		fatal = err
	}
	return fatal
}

// ProcessMain runs the child half of the process bridge when the
// current process was spawned as a section worker, then exits. It is a
// no-op in any other process. Call it early in main(), before flag
// parsing or other side effects.
func ProcessMain() {
	if os.Getenv(workerEnv) == "" {
		return
	}
	if err := processWorker(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "slurry process worker:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// processWorker decodes the section and its input feed, runs the
// section, and streams its output back, ending with a sentinel frame.
func processWorker(r io.Reader, w io.Writer) error {
	dec := gob.NewDecoder(r)
	enc := gob.NewEncoder(w)

	var h procHeader
	if err := dec.Decode(&h); err != nil {
		return err
	}

	var src *SyncSource
	if h.HasInput {
		src = &SyncSource{next: func() (any, error) {
			var f procFrame
			if err := dec.Decode(&f); err != nil {
				return nil, err
			}
			if f.End {
				return nil, stream.End
			}
			return f.Item, nil
		}}
	}

	err := h.Section.RunProcess(src, func(item any) error {
		return enc.Encode(&procFrame{Item: item})
	})
	if err != nil {
		return enc.Encode(&procFrame{End: true, Err: err.Error()})
	}
	return enc.Encode(&procFrame{End: true})
}
