package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// ErrUserRequired is returned when a call names no owner. Stores never fall
// back to an unfiltered query.
var ErrUserRequired = errors.New("store: user id is required")

// VectorStore is the contract for long-term memory backends. Every method is
// scoped to one user id and the filter is applied inside the backend query.
type VectorStore interface {
	StoreMemory(ctx context.Context, rec model.MemoryRecord) error
	SearchMemory(ctx context.Context, userID string, queryEmbedding []float32, limit int) ([]model.MemoryRecord, error)
	// Iterate visits records oldest first until fn returns false.
	Iterate(ctx context.Context, userID string, fn func(model.MemoryRecord) bool) error
	DeleteUser(ctx context.Context, userID string) (int, error)
	Count(ctx context.Context, userID string) (int, error)
}

// SchemaInitializer allows stores to expose optional schema/bootstrap routines.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	return nil
}

func validateRecord(rec model.MemoryRecord) error {
	if err := requireUser(rec.UserID); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.New("store: record id is required")
	}
	return nil
}
