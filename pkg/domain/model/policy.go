package model

import (
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/google/uuid"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// PolicyDocumentID is a UUID-based identifier for PolicyDocument
type PolicyDocumentID string

// NewPolicyDocumentID generates a new UUID v4 PolicyDocumentID
func NewPolicyDocumentID() PolicyDocumentID {
	return PolicyDocumentID(uuid.New().String())
}

// PolicyDocument is one indexed fragment of the school's own policy corpus
// or of the legal/regulatory corpus, used for retrieval-augmented answers.
type PolicyDocument struct {
	ID        PolicyDocumentID
	Scope     types.PolicyScope
	Title     string
	Content   string // Markdown formatted text fragment
	SourceURL string // Direct URL to the source (e.g., Notion page)
	Embedding []float32
	SourcedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult is a ranked retrieval hit.
type SearchResult struct {
	Document *PolicyDocument
	Score    float64
}
