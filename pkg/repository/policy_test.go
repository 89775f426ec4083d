package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/repository/memory"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
)

// axisEmbedding builds a unit vector with 1.0 at the given axis, padded to
// the model's embedding dimension so Firestore vector search accepts it.
func axisEmbedding(axis int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[axis] = 1.0
	return v
}

func testPolicyDoc(scope types.PolicyScope, title string, axis int) *model.PolicyDocument {
	return &model.PolicyDocument{
		ID:        model.NewPolicyDocumentID(),
		Scope:     scope,
		Title:     title,
		Content:   "# " + title + "\n\nContenido del reglamento.",
		SourceURL: "https://notion.so/" + uuid.New().String(),
		Embedding: axisEmbedding(axis),
		SourcedAt: time.Now(),
	}
}

func runPolicyRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put and Get round-trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		schoolID := uuid.New().String()

		doc := testPolicyDoc(types.PolicyScopeSchool, "Reglamento Interno de Convivencia", 0)
		saved, err := repo.Policy().Put(ctx, schoolID, doc)
		gt.NoError(t, err).Required()
		gt.Bool(t, saved.CreatedAt.IsZero()).False()

		got, err := repo.Policy().Get(ctx, schoolID, types.PolicyScopeSchool, doc.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal(doc.Title)
		gt.Value(t, got.Content).Equal(doc.Content)
		gt.Value(t, got.SourceURL).Equal(doc.SourceURL)
		gt.Array(t, got.Embedding).Length(model.EmbeddingDimension)
	})

	t.Run("Get returns error for unknown document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Policy().Get(ctx, uuid.New().String(), types.PolicyScopeSchool, model.NewPolicyDocumentID())
		gt.Error(t, err)
	})

	t.Run("school corpus is partitioned per school", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		schoolA := uuid.New().String()
		schoolB := uuid.New().String()

		doc := testPolicyDoc(types.PolicyScopeSchool, "Protocolo propio del colegio A", 1)
		_, err := repo.Policy().Put(ctx, schoolA, doc)
		gt.NoError(t, err).Required()

		_, err = repo.Policy().Get(ctx, schoolB, types.PolicyScopeSchool, doc.ID)
		gt.Error(t, err)

		docs, err := repo.Policy().ListByScope(ctx, schoolB, types.PolicyScopeSchool)
		gt.NoError(t, err).Required()
		gt.Array(t, docs).Length(0)
	})

	t.Run("legal corpus is shared across schools", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		schoolA := uuid.New().String()
		schoolB := uuid.New().String()

		doc := testPolicyDoc(types.PolicyScopeLegal, "Circular 782 Superintendencia de Educación", 2)
		_, err := repo.Policy().Put(ctx, schoolA, doc)
		gt.NoError(t, err).Required()

		got, err := repo.Policy().Get(ctx, schoolB, types.PolicyScopeLegal, doc.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal(doc.Title)
	})

	t.Run("FindByEmbedding ranks by similarity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		schoolID := uuid.New().String()

		near := testPolicyDoc(types.PolicyScopeSchool, "Protocolo de bullying", 0)
		far := testPolicyDoc(types.PolicyScopeSchool, "Protocolo de accidentes escolares", 1)

		_, err := repo.Policy().Put(ctx, schoolID, near)
		gt.NoError(t, err).Required()
		_, err = repo.Policy().Put(ctx, schoolID, far)
		gt.NoError(t, err).Required()

		query := axisEmbedding(0)
		results, err := repo.Policy().FindByEmbedding(ctx, schoolID, types.PolicyScopeSchool, query, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2).Required()
		gt.Value(t, results[0].ID).Equal(near.ID)
		gt.Value(t, results[1].ID).Equal(far.ID)
	})

	t.Run("FindByEmbedding honors limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		schoolID := uuid.New().String()

		for i := 0; i < 3; i++ {
			_, err := repo.Policy().Put(ctx, schoolID, testPolicyDoc(types.PolicyScopeSchool, "Fragmento", i))
			gt.NoError(t, err).Required()
		}

		results, err := repo.Policy().FindByEmbedding(ctx, schoolID, types.PolicyScopeSchool, axisEmbedding(0), 2)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
	})

	t.Run("Delete removes document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		schoolID := uuid.New().String()

		doc := testPolicyDoc(types.PolicyScopeSchool, "Fragmento temporal", 3)
		_, err := repo.Policy().Put(ctx, schoolID, doc)
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Policy().Delete(ctx, schoolID, types.PolicyScopeSchool, doc.ID)).Required()

		_, err = repo.Policy().Get(ctx, schoolID, types.PolicyScopeSchool, doc.ID)
		gt.Error(t, err)
	})
}

func TestMemoryPolicyRepository(t *testing.T) {
	runPolicyRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestorePolicyRepository(t *testing.T) {
	runPolicyRepositoryTest(t, newFirestoreRepository)
}
