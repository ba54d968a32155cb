package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEach(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := Each(1, 2, 3)
	for want := 1; want <= 3; want++ {
		item, err := src.Next(ctx)
		assert.NoError(err)
		assert.Equal(want, item)
	}
	_, err := src.Next(ctx)
	assert.ErrorIs(err, End)
	assert.False(src.Closed())

	assert.NoError(src.Close())
	assert.True(src.Closed())
}

func TestEach_CloseEndsEarly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := Each("a", "b")
	_, err := src.Next(ctx)
	assert.NoError(err)
	src.Close()
	_, err = src.Next(ctx)
	assert.ErrorIs(err, End)
}

func TestChan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c := make(chan int, 2)
	c <- 1
	c <- 2
	close(c)

	src := Chan(c)
	item, err := src.Next(ctx)
	assert.NoError(err)
	assert.Equal(1, item)
	item, err = src.Next(ctx)
	assert.NoError(err)
	assert.Equal(2, item)
	_, err = src.Next(ctx)
	assert.ErrorIs(err, End)
}

func TestFunc(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	n := 0
	src := Func(func(ctx context.Context) (int, error) {
		if n == 2 {
			return 0, End
		}
		n++
		return n, nil
	})

	item, err := src.Next(ctx)
	assert.NoError(err)
	assert.Equal(1, item)
	item, err = src.Next(ctx)
	assert.NoError(err)
	assert.Equal(2, item)
	_, err = src.Next(ctx)
	assert.ErrorIs(err, End)
}

func TestErase(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	typed := Each(1, 2)
	src := Erase[int](typed)

	item, err := src.Next(ctx)
	assert.NoError(err)
	assert.Equal(any(1), item)

	// Close must reach the underlying stream
	Close(src)
	assert.True(typed.Closed())
	_, err = src.Next(ctx)
	assert.ErrorIs(err, End)
}
