package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/repository/firestore"
	"github.com/convivia-lab/convivia/pkg/repository/memory"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
)

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%s", uuid.New().String()[:8])
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func runCaseRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create creates case with auto-increment ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		case1 := &model.Case{
			Title:       "Agresión en recreo",
			Description: "Incidente entre estudiantes durante el recreo",
			CaseType:    "violencia física",
			Parties: []model.InvolvedParty{
				{Name: "Juan Pérez", Age: 12, Course: "7° Básico A", Role: "afectado"},
			},
		}

		created1, err := repo.Case().Create(ctx, case1)
		gt.NoError(t, err).Required()

		gt.Value(t, created1.ID).NotEqual(int64(0))
		gt.Value(t, created1.Title).Equal(case1.Title)
		gt.Value(t, created1.Status).Equal(types.CaseStatusOpen)
		gt.Array(t, created1.Parties).Length(1)
		gt.Bool(t, created1.CreatedAt.IsZero()).False()
		gt.Bool(t, created1.UpdatedAt.IsZero()).False()

		created2, err := repo.Case().Create(ctx, &model.Case{
			Title: "Hostigamiento reiterado",
		})
		gt.NoError(t, err).Required()

		gt.Value(t, created2.ID).NotEqual(created1.ID)
	})

	t.Run("Get retrieves existing case", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Case().Create(ctx, &model.Case{
			Title:       "Discriminación",
			Description: "Comentarios discriminatorios en redes",
			CaseType:    "violencia digital",
		})
		gt.NoError(t, err).Required()

		retrieved, err := repo.Case().Get(ctx, created.ID)
		gt.NoError(t, err).Required()

		gt.Value(t, retrieved.ID).Equal(created.ID)
		gt.Value(t, retrieved.Title).Equal(created.Title)
		gt.Value(t, retrieved.CaseType).Equal(created.CaseType)
	})

	t.Run("Get returns error for non-existent case", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Case().Get(ctx, time.Now().UnixNano())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("GetBySession finds case bound to session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		sessionID := uuid.New().String()
		created, err := repo.Case().Create(ctx, &model.Case{
			Title:     "Caso documentado por chat",
			SessionID: sessionID,
		})
		gt.NoError(t, err).Required()

		found, err := repo.Case().GetBySession(ctx, sessionID)
		gt.NoError(t, err).Required()
		gt.Value(t, found).NotNil()
		gt.Value(t, found.ID).Equal(created.ID)
	})

	t.Run("GetBySession returns nil for unknown session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		found, err := repo.Case().GetBySession(ctx, uuid.New().String())
		gt.NoError(t, err)
		gt.Value(t, found).Nil()
	})

	t.Run("Update preserves CreatedAt and bumps UpdatedAt", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Case().Create(ctx, &model.Case{Title: "Original"})
		gt.NoError(t, err).Required()

		created.Title = "Actualizado"
		created.Parties = []model.InvolvedParty{
			{Name: "Ana Soto", Age: 13, Course: "8° Básico B", Role: "testigo"},
		}

		updated, err := repo.Case().Update(ctx, created)
		gt.NoError(t, err).Required()

		gt.Value(t, updated.Title).Equal("Actualizado")
		gt.Array(t, updated.Parties).Length(1)
		gt.Bool(t, updated.CreatedAt.Equal(created.CreatedAt)).True()
	})

	t.Run("Update returns error for non-existent case", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Case().Update(ctx, &model.Case{ID: time.Now().UnixNano(), Title: "ghost"})
		gt.Error(t, err)
	})

	t.Run("Delete removes case", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Case().Create(ctx, &model.Case{Title: "A eliminar"})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Case().Delete(ctx, created.ID)).Required()

		_, err = repo.Case().Get(ctx, created.ID)
		gt.Error(t, err)
	})
}

func TestMemoryCaseRepository(t *testing.T) {
	runCaseRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreCaseRepository(t *testing.T) {
	runCaseRepositoryTest(t, newFirestoreRepository)
}
