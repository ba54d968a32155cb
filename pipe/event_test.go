package pipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersea/slurry/stream"
)

func TestEvent_HandlerOrder(t *testing.T) {
	assert := assert.New(t)

	p := New(context.Background(), stream.Erase[int](stream.Each(1)))

	var order []string
	record := func(name string) HandlerFunc {
		return func(ev *Event) bool {
			order = append(order, name)
			return true
		}
	}
	p.Options.OnEventPost(record("post"), EVENT_START)
	p.Options.OnEvent(record("mid"), EVENT_START)
	p.Options.OnEventPre(record("pre"), EVENT_START)

	rx := p.Tap()
	collect(t, rx)
	assert.NoError(p.Close())

	assert.Equal([]string{"pre", "mid", "post"}, order)
}

func TestEvent_HandlerUnregisters(t *testing.T) {
	assert := assert.New(t)

	p := New(context.Background(), stream.Erase[int](stream.Each(1, 2, 3)))

	calls := 0
	p.Options.OnEvent(func(ev *Event) bool {
		calls++
		return false // drop after the first call
	}, EVENT_START, EVENT_STOP)

	rx := p.Tap(TapConfig{MaxBufferSize: 8, Start: true})
	collect(t, rx)
	p.Close()

	// the handler saw EVENT_START, dropped itself, and missed EVENT_STOP
	assert.Equal(1, calls)
}

func TestEvent_CatchAll(t *testing.T) {
	assert := assert.New(t)

	p := New(context.Background(), stream.Erase[int](stream.Each(1)))

	var types []string
	p.Options.OnEvent(func(ev *Event) bool {
		types = append(types, ev.Type)
		return true
	})

	rx := p.Tap()
	collect(t, rx)
	assert.NoError(p.Close())

	assert.Contains(types, EVENT_START)
	assert.Contains(types, EVENT_STOP)
}

func TestEvent_String(t *testing.T) {
	assert := assert.New(t)

	var ev *Event
	assert.Equal("nil", ev.String())
	assert.Contains((&Event{Seq: 3, Type: EVENT_STOP}).String(), EVENT_STOP)
}
