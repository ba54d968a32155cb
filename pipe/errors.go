package pipe

import (
	"errors"
	"fmt"

	"github.com/andersea/slurry/scope"
)

var (
	// ErrBusyResource is returned by a tap send that exhausted its retries.
	ErrBusyResource = errors.New("busy resource")

	// ErrStopped is the cancel cause used when a pipeline is stopped.
	ErrStopped = fmt.Errorf("pipeline stopped: %w", scope.ErrCancelled)
)

// InvalidPipelineShapeError reports an ill-formed section tree handed
// to Weld: a stream anywhere but the head of its sequence, an empty
// sequence, or a node that is no section flavor at all.
type InvalidPipelineShapeError struct {
	Node any // the offending node
}

func (e *InvalidPipelineShapeError) Error() string {
	if e.Node == nil {
		return "invalid pipeline section: empty sequence"
	}
	return fmt.Sprintf("invalid pipeline section: %T", e.Node)
}
