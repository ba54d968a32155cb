package sections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

func TestSkip(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(0, 1, 2, 3, 4)),
		NewSkip(2),
	)
	rx := p.Tap()
	assert.Equal([]any{2, 3, 4}, collect(t, rx))
	assert.NoError(p.Close())
}

func TestSkip_ShortInput(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(0, 1)),
		NewSkip(5),
	)
	rx := p.Tap()
	assert.Empty(collect(t, rx))
	assert.NoError(p.Close())
}

func TestFilter(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(0, 1, 2, 3, 4, 5)),
		NewFilter(func(item any) bool { return item.(int)%2 == 0 }),
	)
	rx := p.Tap()
	assert.Equal([]any{0, 2, 4}, collect(t, rx))
	assert.NoError(p.Close())
}

func TestChanges(t *testing.T) {
	assert := assert.New(t)

	p := pipe.New(context.Background(),
		stream.Erase[string](stream.Each("a", "a", "b", "b", "b", "a")),
		&Changes{},
	)
	rx := p.Tap()
	assert.Equal([]any{"a", "b", "a"}, collect(t, rx))
	assert.NoError(p.Close())
}

func TestRateLimit(t *testing.T) {
	assert := assert.New(t)

	// a fast burst collapses to the first item per interval
	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(1, 2, 3, 4, 5)),
		NewRateLimit(time.Second),
	)
	rx := p.Tap()
	assert.Equal([]any{1}, collect(t, rx))
	assert.NoError(p.Close())
}

func TestRateLimit_PerSubject(t *testing.T) {
	assert := assert.New(t)

	items := []any{
		map[string]any{"id": "a", "n": 1},
		map[string]any{"id": "b", "n": 2},
		map[string]any{"id": "a", "n": 3},
	}
	rl := NewRateLimit(time.Second)
	rl.SubjectKey = "id"

	p := pipe.New(context.Background(), stream.Each(items...), rl)
	rx := p.Tap()

	got := collect(t, rx)
	assert.Len(got, 2, "one item per subject must pass")
	assert.Equal(1, got[0].(map[string]any)["n"])
	assert.Equal(2, got[1].(map[string]any)["n"])
	assert.NoError(p.Close())
}
