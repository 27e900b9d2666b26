package memory

import (
	"errors"
	"fmt"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/store"
)

var (
	// ErrEmptyText is returned for blank memory text or search queries.
	ErrEmptyText = errors.New("memory: text is empty")
	// ErrUserRequired is returned when no owner is given.
	ErrUserRequired = store.ErrUserRequired
)

// UpstreamError wraps a failure of the embedder, vector store or LLM.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("memory %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
