package pipe

import (
	"fmt"
	"time"
)

// a collection of events generated internally by the pipeline
var (
	// pipeline has been enabled and its output driver is running
	EVENT_START = "slurry/pipe.START"

	// pipeline is about to stop
	EVENT_STOP = "slurry/pipe.STOP"

	// a new tap was opened (value: *Tap)
	EVENT_TAP = "slurry/pipe.TAP"

	// a tap was pruned after its consumer went away (value: *Tap)
	EVENT_TAP_CLOSED = "slurry/pipe.TAP_CLOSED"

	// the pipeline was extended (value: the child *Pipeline)
	EVENT_EXTEND = "slurry/pipe.EXTEND"
)

// Event represents an arbitrary event in a pipeline.
type Event struct {
	Pipeline *Pipeline `json:"-"`              // parent pipeline
	Seq      uint64    `json:"seq,omitempty"`  // event sequence number
	Time     time.Time `json:"time,omitempty"` // event timestamp

	Type  string `json:"type"`            // type, usually "lib/pkg.NAME"
	Error error  `json:"err,omitempty"`   // optional error related to the event
	Value any    `json:"value,omitempty"` // optional value, type-specific

	Handler *Handler `json:"-"` // currently running handler (may be nil)
}

// String returns event type and seq number as string
func (ev *Event) String() string {
	if ev == nil {
		return "nil"
	}
	return fmt.Sprintf("E%d:%s", ev.Seq, ev.Type)
}

// Event publishes an event of the given type to all matching handlers,
// in their registration order (Pre first, Post last). Handlers run on
// the publishing worker. Returns the published event.
func (p *Pipeline) Event(typ string, value any) *Event {
	ev := &Event{
		Pipeline: p,
		Seq:      p.evseq.Add(1),
		Time:     time.Now().UTC(),
		Type:     typ,
		Value:    value,
	}

	p.evmu.RLock()
	hs := append([]*Handler{}, p.events[typ]...)
	if typ != "*" {
		hs = append(hs, p.events["*"]...)
	}
	p.evmu.RUnlock()

	for _, h := range hs {
		if h.Dropped {
			continue
		}
		if h.Enabled != nil && !h.Enabled.Load() {
			continue
		}
		ev.Handler = h
		if !h.Func(ev) {
			h.Dropped = true
		}
	}
	ev.Handler = nil

	return ev
}
