/*
 * a basic example for slurry usage
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/sections"
	"github.com/andersea/slurry/stream"
)

func main() {
	// a pipeline: integers -> squared -> only even squares
	p := pipe.New(context.Background(),
		stream.Erase[int](stream.Each(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)),
		sections.NewMap(func(item any) any { return item.(int) * item.(int) }),
		sections.NewFilter(func(item any) bool { return item.(int)%2 == 0 }),
	)
	p.Options.OnEvent(event) // call event() on any pipeline event

	// a second consumer over an extension that stringifies the output
	ext := p.Extend(sections.NewMap(func(item any) any {
		return fmt.Sprintf("squared=%d", item)
	}))

	// opening the taps enables the pipeline
	labels := ext.Tap(pipe.TapConfig{Timeout: time.Second, Retries: 1, Start: true})
	numbers := p.Tap()

	go func() {
		defer stream.Close(labels)
		for {
			item, err := labels.Next(context.Background())
			if err != nil {
				return
			}
			fmt.Println(item)
		}
	}()

	for {
		item, err := numbers.Next(context.Background())
		if err != nil {
			if !errors.Is(err, stream.End) {
				fmt.Println("tap error:", err)
			}
			break
		}
		fmt.Println(item)
	}

	// shut everything down, extensions included
	if err := p.Close(); err != nil {
		fmt.Println("pipeline error:", err)
	}
}

func event(ev *pipe.Event) bool {
	switch ev.Type {
	case pipe.EVENT_START:
		fmt.Println("pipeline running")
	case pipe.EVENT_TAP_CLOSED:
		fmt.Println("a consumer went away")
	}
	return true
}
