package pipe

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default pipeline options
var DefaultOptions = Options{
	Logger: &log.Logger,
}

// Pipeline options
type Options struct {
	Logger *zerolog.Logger // if nil logging is disabled

	Handlers []*Handler // event handlers
}

// Handler represents a function to call for matching pipeline events
type Handler struct {
	Id      int          // optional handler id number (zero means none)
	Name    string       // optional name
	Order   int          // the lower the order, the sooner handler is run
	Enabled *atomic.Bool // if non-nil, disables the handler unless true
	Dropped bool         // if true, permanently drops (unregisters) the handler

	Pre  bool // run before non-pre handlers?
	Post bool // run after non-post handlers?

	Types []string    // if non-empty, limits event types
	Func  HandlerFunc // the function to call
}

// HandlerFunc handles event ev.
// Return false to unregister the handler (all types).
type HandlerFunc func(ev *Event) (keep_handler bool)

// AddHandler adds a handler function using tpl as its template (if present).
// It returns the added Handler, which can be further configured.
func (o *Options) AddHandler(hdf HandlerFunc, tpl ...*Handler) *Handler {
	var h Handler

	// deep copy the tpl?
	if len(tpl) > 0 {
		h = *tpl[0]
		h.Types = nil
		h.Types = append(h.Types, tpl[0].Types...)
	}

	// all types?
	if len(h.Types) == 0 {
		h.Types = []string{"*"}
	}

	// override the function?
	if hdf != nil {
		h.Func = hdf
	}

	// override the name?
	if len(h.Name) == 0 {
		h.Name = runtime.FuncForPC(reflect.ValueOf(hdf).Pointer()).Name()
	}

	o.Handlers = append(o.Handlers, &h)
	return &h
}

// String returns handler name and id as string
func (h *Handler) String() string {
	return fmt.Sprintf("EV%d:%s", h.Id, h.Name)
}

// Enable sets h.Enabled to true and returns true. If h.Enabled is nil, returns false.
func (h *Handler) Enable() bool {
	if h == nil || h.Enabled == nil {
		return false
	} else {
		h.Enabled.Store(true)
		return true
	}
}

// Disable sets h.Enabled to false and returns true. If h.Enabled is nil, returns false.
func (h *Handler) Disable() bool {
	if h == nil || h.Enabled == nil {
		return false
	} else {
		h.Enabled.Store(false)
		return true
	}
}

// Drop drops the handler, permanently unregistering it from running
func (h *Handler) Drop() {
	if h != nil {
		h.Dropped = true
	}
}

// OnEvent requests hdf to be called for given event types.
// If no types provided, it requests to call hdf on *every* event.
func (o *Options) OnEvent(hdf HandlerFunc, types ...string) *Handler {
	return o.AddHandler(hdf, &Handler{
		Order: len(o.Handlers) + 1,
		Types: types,
	})
}

// OnEventPre is like OnEvent but requests to run hdf before other handlers
func (o *Options) OnEventPre(hdf HandlerFunc, types ...string) *Handler {
	return o.AddHandler(hdf, &Handler{
		Pre:   true,
		Order: -len(o.Handlers) - 1,
		Types: types,
	})
}

// OnEventPost is like OnEvent but requests to run hdf after other handlers
func (o *Options) OnEventPost(hdf HandlerFunc, types ...string) *Handler {
	return o.AddHandler(hdf, &Handler{
		Post:  true,
		Order: len(o.Handlers) + 1,
		Types: types,
	})
}

// OnStart requests hdf to be called when the pipeline is enabled.
func (o *Options) OnStart(hdf HandlerFunc) *Handler {
	return o.OnEvent(hdf, EVENT_START)
}

// OnStop requests hdf to be called when the pipeline stops.
func (o *Options) OnStop(hdf HandlerFunc) *Handler {
	return o.OnEvent(hdf, EVENT_STOP)
}

// OnTap requests hdf to be called when a new tap is opened.
func (o *Options) OnTap(hdf HandlerFunc) *Handler {
	return o.OnEvent(hdf, EVENT_TAP)
}

// apply installs opts on the pipeline: the logger, and the event
// handlers sorted into their dispatch table.
func (p *Pipeline) apply(opts *Options) {
	if !p.applied.CompareAndSwap(false, true) {
		return
	}

	if opts.Logger != nil {
		p.Logger = opts.Logger
	} else {
		l := zerolog.Nop()
		p.Logger = &l
	}

	// rewrite handlers
	slices.SortStableFunc(opts.Handlers, func(a, b *Handler) int {
		if a.Pre != b.Pre {
			if a.Pre {
				return -1
			} else {
				return 1
			}
		}
		if a.Post != b.Post {
			if a.Post {
				return 1
			} else {
				return -1
			}
		}
		return a.Order - b.Order
	})

	p.evmu.Lock()
	defer p.evmu.Unlock()
	p.events = make(map[string][]*Handler)
	for _, h := range opts.Handlers {
		if h == nil || h.Func == nil {
			continue
		}
		types := slices.Clone(h.Types)
		sort.Strings(types)
		for _, typ := range slices.Compact(types) {
			p.events[typ] = append(p.events[typ], h)
		}
	}
}
