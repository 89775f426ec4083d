package interfaces

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
)

// PolicyRepository stores indexed policy document fragments. The school
// scope is partitioned per school; the legal scope is shared, in which
// case schoolID is ignored.
type PolicyRepository interface {
	// Put upserts a policy document fragment
	Put(ctx context.Context, schoolID string, doc *model.PolicyDocument) (*model.PolicyDocument, error)

	// Get retrieves a policy document by ID
	Get(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) (*model.PolicyDocument, error)

	// ListByScope returns all fragments of a corpus, newest first
	ListByScope(ctx context.Context, schoolID string, scope types.PolicyScope) ([]*model.PolicyDocument, error)

	// FindByEmbedding returns the fragments nearest to the embedding,
	// most similar first
	FindByEmbedding(ctx context.Context, schoolID string, scope types.PolicyScope, embedding []float32, limit int) ([]*model.PolicyDocument, error)

	// Delete removes a policy document by ID
	Delete(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) error
}
