package interfaces

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
)

// PolicySearch retrieves policy fragments relevant to a query text.
type PolicySearch interface {
	// Embed converts text into an embedding vector
	Embed(ctx context.Context, text string) ([]float32, error)

	// Query searches one corpus, most relevant first
	Query(ctx context.Context, schoolID string, scope types.PolicyScope, query string, limit int) ([]*model.PolicyDocument, error)

	// QueryDual searches the school corpus and the legal corpus and merges
	// the results into prompt-ready text under a balanced character budget
	QueryDual(ctx context.Context, schoolID string, query string, limit int, budget int) (string, error)
}
