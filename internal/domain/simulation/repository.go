package simulation

import (
	"context"

	"github.com/google/uuid"
)

// RunRepository defines the interface for run persistence
type RunRepository interface {
	// FindByID finds a run by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// FindByName finds a run by its generated name
	FindByName(ctx context.Context, name string) (*Run, error)

	// FindRecent returns the most recently created runs, newest first
	FindRecent(ctx context.Context, limit int) ([]Run, error)

	// FindByStatus returns runs in the given status, newest first
	FindByStatus(ctx context.Context, status RunStatus, limit int) ([]Run, error)

	// Save creates or updates a run
	Save(ctx context.Context, run *Run) error

	// Delete deletes a run
	Delete(ctx context.Context, id uuid.UUID) error
}
