package memory

import (
	"context"
	"sync"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

type protocolRepository struct {
	mu        sync.RWMutex
	byCase    map[int64]*model.Protocol
	bySession map[string]*model.Protocol
}

func newProtocolRepository() *protocolRepository {
	return &protocolRepository{
		byCase:    make(map[int64]*model.Protocol),
		bySession: make(map[string]*model.Protocol),
	}
}

func (r *protocolRepository) Put(ctx context.Context, p *model.Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := p.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	if stored.CaseID != 0 {
		r.byCase[stored.CaseID] = stored
	}
	if stored.SessionID != "" {
		r.bySession[stored.SessionID] = stored
	}

	return nil
}

func (r *protocolRepository) GetByCase(ctx context.Context, caseID int64) (*model.Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.byCase[caseID]
	if !exists {
		return nil, nil
	}

	return p.Clone(), nil
}

func (r *protocolRepository) GetBySession(ctx context.Context, sessionID string) (*model.Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.bySession[sessionID]
	if !exists {
		return nil, nil
	}

	return p.Clone(), nil
}

func (r *protocolRepository) DeleteByCase(ctx context.Context, caseID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.byCase[caseID]
	if !exists {
		return nil
	}

	delete(r.byCase, caseID)
	if p.SessionID != "" {
		delete(r.bySession, p.SessionID)
	}

	return nil
}
