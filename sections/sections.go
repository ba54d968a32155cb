// Package sections provides a library of ready-made pipeline sections:
// producers, refiners, filters, combiners and buffers. Every section
// here runs in the native environment and composes freely with custom
// sections through the pipe.Section contract.
package sections

import "errors"

var (
	// ErrNoInput is reported by a middle section used at the head of a
	// pipeline without a fallback source.
	ErrNoInput = errors.New("no input provided")

	// ErrRepeatDefault is reported by a Repeat used as a producer with
	// no default value to repeat.
	ErrRepeatDefault = errors.New("repeat requires a default")
)
