package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// StateStore defines the interface for persisting run checkpoints.
// This allows a run to be suspended at a gate and resumed after a restart.
type StateStore interface {
	// Save persists the state for a given run ID.
	Save(ctx context.Context, runID string, state *domain.TaskState) error

	// Load retrieves the state for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.TaskState, error)

	// Delete removes the state for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of the stored runs.
	List(ctx context.Context) ([]string, error)
}
