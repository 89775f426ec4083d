package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type policyKey struct {
	schoolID string
	scope    types.PolicyScope
}

type policyRepository struct {
	mu   sync.RWMutex
	docs map[policyKey]map[model.PolicyDocumentID]*model.PolicyDocument
}

func newPolicyRepository() *policyRepository {
	return &policyRepository{
		docs: make(map[policyKey]map[model.PolicyDocumentID]*model.PolicyDocument),
	}
}

// key normalizes the partition: the legal corpus is shared across schools.
func (r *policyRepository) key(schoolID string, scope types.PolicyScope) policyKey {
	if scope == types.PolicyScopeLegal {
		return policyKey{scope: scope}
	}
	return policyKey{schoolID: schoolID, scope: scope}
}

func copyPolicyDocument(d *model.PolicyDocument) *model.PolicyDocument {
	copied := *d
	if d.Embedding != nil {
		copied.Embedding = make([]float32, len(d.Embedding))
		copy(copied.Embedding, d.Embedding)
	}
	return &copied
}

func (r *policyRepository) Put(ctx context.Context, schoolID string, doc *model.PolicyDocument) (*model.PolicyDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := copyPolicyDocument(doc)
	if stored.ID == "" {
		stored.ID = model.NewPolicyDocumentID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	key := r.key(schoolID, stored.Scope)
	if _, exists := r.docs[key]; !exists {
		r.docs[key] = make(map[model.PolicyDocumentID]*model.PolicyDocument)
	}
	r.docs[key][stored.ID] = stored

	return copyPolicyDocument(stored), nil
}

func (r *policyRepository) Get(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) (*model.PolicyDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.docs[r.key(schoolID, scope)]
	doc, exists := bucket[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "policy document not found", goerr.V("id", id))
	}

	return copyPolicyDocument(doc), nil
}

func (r *policyRepository) ListByScope(ctx context.Context, schoolID string, scope types.PolicyScope) ([]*model.PolicyDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.docs[r.key(schoolID, scope)]
	result := make([]*model.PolicyDocument, 0, len(bucket))
	for _, doc := range bucket {
		result = append(result, copyPolicyDocument(doc))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *policyRepository) FindByEmbedding(ctx context.Context, schoolID string, scope types.PolicyScope, embedding []float32, limit int) ([]*model.PolicyDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.docs[r.key(schoolID, scope)]

	type scored struct {
		doc   *model.PolicyDocument
		score float64
	}

	var candidates []scored
	for _, doc := range bucket {
		if len(doc.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity(embedding, doc.Embedding)
		candidates = append(candidates, scored{doc: copyPolicyDocument(doc), score: s})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.PolicyDocument, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].doc
	}

	return result, nil
}

func (r *policyRepository) Delete(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.docs[r.key(schoolID, scope)]
	if _, exists := bucket[id]; !exists {
		return goerr.Wrap(ErrNotFound, "policy document not found", goerr.V("id", id))
	}

	delete(bucket, id)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
