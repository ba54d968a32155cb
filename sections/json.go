package sections

import (
	"context"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/andersea/slurry/pipe"
	"github.com/andersea/slurry/stream"
)

// JSONField extracts a field from JSON-encoded items ([]byte or
// string) and outputs the raw value bytes. Items that miss the field
// or fail to parse are discarded, unless Strict is set, in which case
// they fail the pipeline.
type JSONField struct {
	Path   []string
	Strict bool
	Source stream.Stream[any]
}

// NewJSONField returns a JSONField over the given key path.
func NewJSONField(path ...string) *JSONField {
	return &JSONField{Path: path}
}

func (j *JSONField) Run(ctx context.Context, input stream.Stream[any], output pipe.SendFunc) error {
	src := input
	if src == nil {
		src = j.Source
	}
	if src == nil {
		return ErrNoInput
	}
	defer stream.Close(src)

	for {
		item, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.End) {
				return nil
			}
			return err
		}

		var data []byte
		switch v := item.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		default:
			if j.Strict {
				return fmt.Errorf("json field: unsupported item type %T", item)
			}
			continue
		}

		value, _, _, err := jsonparser.Get(data, j.Path...)
		if err != nil {
			if j.Strict {
				return fmt.Errorf("json field %v: %w", j.Path, err)
			}
			continue
		}
		if err := output(ctx, value); err != nil {
			return err
		}
	}
}
