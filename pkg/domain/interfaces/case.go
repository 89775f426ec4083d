package interfaces

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

// CaseRepository defines the interface for Case data access
type CaseRepository interface {
	// Create creates a new case with auto-generated ID
	Create(ctx context.Context, c *model.Case) (*model.Case, error)

	// Get retrieves a case by ID
	Get(ctx context.Context, id int64) (*model.Case, error)

	// GetBySession retrieves the case documented by the given chat session.
	// Returns nil, nil if no case is bound to the session.
	GetBySession(ctx context.Context, sessionID string) (*model.Case, error)

	// List retrieves all cases, newest first
	List(ctx context.Context) ([]*model.Case, error)

	// Update updates an existing case wholesale
	Update(ctx context.Context, c *model.Case) (*model.Case, error)

	// Delete deletes a case by ID. The caller is responsible for cascading
	// deletion of the case's protocol.
	Delete(ctx context.Context, id int64) error
}
