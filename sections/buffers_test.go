package sections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

func TestWindow(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(1, 2, 3, 4)),
		NewWindow(2),
	)
	rx := p.Tap()

	got := collect(t, rx)
	assert.Equal([]any{
		[]any{1},
		[]any{1, 2},
		[]any{2, 3},
		[]any{3, 4},
	}, got)
	assert.NoError(p.Close())
}

func TestGroup_FlushOnSize(t *testing.T) {
	assert := assert.New(t)

	g := NewGroup(time.Minute)
	g.MaxSize = 2
	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(1, 2, 3, 4, 5)),
		g,
	)
	rx := p.Tap()

	got := collect(t, rx)
	assert.Equal([]any{
		[]any{1, 2},
		[]any{3, 4},
		[]any{5},
	}, got)
	assert.NoError(p.Close())
}

func TestGroup_FlushOnTimer(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		intsEvery(0, 150*time.Millisecond),
		NewGroup(50*time.Millisecond),
	)
	rx := p.Tap()

	// items arrive slower than the group interval: singleton batches
	got := collectN(t, rx, 2)
	assert.Equal([]any{[]any{0}, []any{1}}, got)

	stream.Close(rx)
	assert.NoError(p.Close())
}

func TestDelay(t *testing.T) {
	assert := assert.New(t)

	delay := 80 * time.Millisecond
	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(1, 2)),
		NewDelay(delay),
	)
	rx := p.Tap()

	start := time.Now()
	got := collect(t, rx)
	assert.Equal([]any{1, 2}, got)
	assert.GreaterOrEqual(time.Since(start), delay)
	assert.NoError(p.Close())
}
