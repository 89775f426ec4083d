package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/repository/memory"
	"github.com/convivia-lab/convivia/pkg/usecase"
	"github.com/m-mizutani/gt"
)

func storedProtocol() *model.Protocol {
	base := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	return &model.Protocol{
		Name:      "Protocolo de actuación ante bullying",
		CaseID:    7,
		SessionID: "session-7",
		Steps: []model.ProtocolStep{
			{ID: 1, Title: "Entrevistar al estudiante afectado", Status: types.StepStatusInProgress, EstimatedTime: "inmediato"},
			{ID: 2, Title: "Notificar a los apoderados", Status: types.StepStatusPending, EstimatedTime: "1 día hábil"},
			{ID: 3, Title: "Elaborar plan de intervención", Status: types.StepStatusPending, EstimatedTime: "3 días hábiles"},
		},
		CurrentStep: 1,
		BaseDate:    base,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func TestCompleteStep(t *testing.T) {
	ctx := context.Background()

	t.Run("completes step and activates the next pending", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.Protocol().Put(ctx, storedProtocol())).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		p, err := uc.CompleteStep(ctx, "school-1", 7, "session-7", 1, "entrevista realizada")
		gt.NoError(t, err).Required()

		step := p.Step(1)
		gt.Value(t, step.Status).Equal(types.StepStatusCompleted)
		gt.Value(t, step.CompletedAt).NotNil()
		gt.Value(t, step.Notes).Equal("entrevista realizada")

		next := p.Step(2)
		gt.Value(t, next.Status).Equal(types.StepStatusInProgress)
		gt.Value(t, next.Deadline).NotNil()
		gt.Value(t, p.Step(3).Status).Equal(types.StepStatusPending)
		gt.Bool(t, p.IsCompleted).False()

		// The transition is persisted, not just returned.
		stored, err := repo.Protocol().GetByCase(ctx, 7)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Step(1).Status).Equal(types.StepStatusCompleted)
		gt.Value(t, stored.Step(2).Status).Equal(types.StepStatusInProgress)
	})

	t.Run("activated step deadline derives from the base date", func(t *testing.T) {
		repo := memory.New()
		p := storedProtocol()
		gt.NoError(t, repo.Protocol().Put(ctx, p)).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		updated, err := uc.CompleteStep(ctx, "school-1", 7, "session-7", 1, "")
		gt.NoError(t, err).Required()

		// "1 día hábil" from Monday 2026-03-16 is Tuesday the 17th,
		// regardless of when the step was completed.
		deadline := updated.Step(2).Deadline
		gt.Value(t, deadline).NotNil()
		gt.Value(t, deadline.Format(time.DateOnly)).Equal("2026-03-17")
	})

	t.Run("completing the last step finishes the protocol", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.Protocol().Put(ctx, storedProtocol())).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		for _, stepID := range []int{1, 2, 3} {
			_, err := uc.CompleteStep(ctx, "school-1", 7, "session-7", stepID, "")
			gt.NoError(t, err).Required()
		}

		stored, err := repo.Protocol().GetByCase(ctx, 7)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.IsCompleted).True()
		for _, s := range stored.Steps {
			gt.Value(t, s.Status).Equal(types.StepStatusCompleted)
		}
	})

	t.Run("unknown step id fails without mutating", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.Protocol().Put(ctx, storedProtocol())).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		_, err := uc.CompleteStep(ctx, "school-1", 7, "session-7", 9999, "")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrStepNotFound)).True()

		stored, getErr := repo.Protocol().GetByCase(ctx, 7)
		gt.NoError(t, getErr).Required()
		gt.Value(t, stored.Step(1).Status).Equal(types.StepStatusInProgress)
		gt.Bool(t, stored.IsCompleted).False()
	})

	t.Run("no active protocol fails with not found", func(t *testing.T) {
		uc := usecase.New(memory.New(), &mockLLMClient{})

		_, err := uc.CompleteStep(ctx, "school-1", 404, "no-session", 1, "")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrProtocolNotFound)).True()
	})

	t.Run("session fallback finds a protocol without case id", func(t *testing.T) {
		repo := memory.New()
		p := storedProtocol()
		p.CaseID = 0
		gt.NoError(t, repo.Protocol().Put(ctx, p)).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		updated, err := uc.CompleteStep(ctx, "school-1", 0, "session-7", 1, "")
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Step(1).Status).Equal(types.StepStatusCompleted)
	})
}

func TestGetProtocol(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil view when no protocol is active", func(t *testing.T) {
		uc := usecase.New(memory.New(), &mockLLMClient{})

		view, err := uc.GetProtocol(ctx, 123, "no-session")
		gt.NoError(t, err)
		gt.Value(t, view).Nil()
	})

	t.Run("view carries current step and progress", func(t *testing.T) {
		repo := memory.New()
		p := storedProtocol()
		p.Steps[0].Status = types.StepStatusCompleted
		gt.NoError(t, repo.Protocol().Put(ctx, p)).Required()
		uc := usecase.New(repo, &mockLLMClient{})

		view, err := uc.GetProtocol(ctx, 7, "")
		gt.NoError(t, err).Required()
		gt.Value(t, view).NotNil()

		gt.Value(t, view.Protocol.Name).Equal("Protocolo de actuación ante bullying")
		gt.Value(t, view.Current.ID).Equal(2)
		gt.Value(t, view.Progress.Completed).Equal(1)
		gt.Value(t, view.Progress.Total).Equal(3)
	})
}
