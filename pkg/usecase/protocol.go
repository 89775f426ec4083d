package usecase

import (
	"context"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/service/deadline"
	"github.com/convivia-lab/convivia/pkg/utils/async"
	"github.com/m-mizutani/goerr/v2"
)

// ProtocolView is a protocol with its derived execution state.
type ProtocolView struct {
	Protocol *model.Protocol
	Current  *model.ProtocolStep
	Progress model.Progress
}

// GetProtocol loads the protocol for a case/session pair: case ID is the
// primary key, session ID the fallback. Returns nil, nil when no protocol
// is active, which is a normal state.
func (uc *UseCases) GetProtocol(ctx context.Context, caseID int64, sessionID string) (*ProtocolView, error) {
	p, err := uc.loadProtocol(ctx, caseID, sessionID)
	if err != nil || p == nil {
		return nil, err
	}

	return &ProtocolView{
		Protocol: p,
		Current:  CurrentStep(p),
		Progress: p.Progress(),
	}, nil
}

func (uc *UseCases) loadProtocol(ctx context.Context, caseID int64, sessionID string) (*model.Protocol, error) {
	if caseID != 0 {
		p, err := uc.repo.Protocol().GetByCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	if sessionID != "" {
		return uc.repo.Protocol().GetBySession(ctx, sessionID)
	}
	return nil, nil
}

// CurrentStep returns the first step in sequence order with status
// pending, or nil when none. An in_progress step is deliberately not
// matched here; callers needing it must scan for it themselves.
func CurrentStep(p *model.Protocol) *model.ProtocolStep {
	for i := range p.Steps {
		if p.Steps[i].Status == types.StepStatusPending {
			return &p.Steps[i]
		}
	}
	return nil
}

// CompleteStep transitions a step to completed, activates the first
// remaining pending step, and marks the protocol completed when nothing
// remains. An unknown step ID fails with ErrStepNotFound and leaves the
// stored protocol untouched.
//
// Two users completing steps simultaneously is last-write-wins at the
// repository layer; the off-protocol scenario is rare enough that no
// optimistic locking is applied.
func (uc *UseCases) CompleteStep(ctx context.Context, schoolID string, caseID int64, sessionID string, stepID int, notes string) (*model.Protocol, error) {
	p, err := uc.loadProtocol(ctx, caseID, sessionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, goerr.Wrap(ErrProtocolNotFound, "no active protocol",
			goerr.V(CaseIDKey, caseID),
			goerr.V(SessionIDKey, sessionID))
	}

	step := p.Step(stepID)
	if step == nil {
		return nil, goerr.Wrap(ErrStepNotFound, "step does not exist in protocol",
			goerr.V(StepIDKey, stepID),
			goerr.V(CaseIDKey, caseID))
	}

	now := time.Now().UTC()
	step.Status = types.StepStatusCompleted
	step.CompletedAt = &now
	if notes != "" {
		step.Notes = notes
	}

	// Activate exactly one successor.
	if next := CurrentStep(p); next != nil {
		next.Status = types.StepStatusInProgress
		if next.Deadline == nil {
			next.Deadline = deadline.Calculate(next.EstimatedTime, p.BaseDate)
		}
	} else {
		p.IsCompleted = true
	}

	if err := uc.repo.Protocol().Put(ctx, p); err != nil {
		return nil, goerr.Wrap(err, "failed to save protocol",
			goerr.V(CaseIDKey, caseID))
	}

	if uc.notify != nil {
		if entry, err := uc.registry.Get(schoolID); err == nil {
			async.Dispatch(ctx, func(ctx context.Context) error {
				uc.notify.NotifyStepCompleted(ctx, entry.SlackChannelID, p, step)
				return nil
			})
		}
	}

	return p, nil
}
