package sections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

func TestRepeat_Producer(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(), NewRepeat(20*time.Millisecond, "a"))
	rx := p.Tap()

	assert.Equal([]any{"a", "a", "a"}, collectN(t, rx, 3))
	stream.Close(rx)
	assert.NoError(p.Close())
}

func TestRepeat_ProducerNeedsDefault(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(), NewRepeat(20*time.Millisecond))
	p.Tap()
	assert.ErrorIs(p.Wait(), ErrRepeatDefault)
}

func TestRepeat_InputResetsValue(t *testing.T) {
	assert := assert.New(t)

	// the input item is sent immediately and becomes the repeated value
	p := pipe.New(context.Background(),
		stream.Erase[string](stream.Each("b")),
		NewRepeat(20*time.Millisecond, "a"),
	)
	rx := p.Tap()

	got := collectN(t, rx, 4)
	assert.Equal("a", got[0], "default must be sent first")
	assert.Contains(got, "b")
	last := got[len(got)-1]
	assert.Equal("b", last, "input value must take over the repeat")

	stream.Close(rx)
	assert.NoError(p.Close())
}
