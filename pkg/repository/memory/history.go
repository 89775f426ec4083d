package memory

import (
	"context"
	"sync"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

type historyRepository struct {
	mu        sync.RWMutex
	messages  map[string][]model.ChatMessage
	summaries map[string]string
}

func newHistoryRepository() *historyRepository {
	return &historyRepository{
		messages:  make(map[string][]model.ChatMessage),
		summaries: make(map[string]string),
	}
}

func (r *historyRepository) List(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[sessionID]
	result := make([]model.ChatMessage, len(msgs))
	copy(result, msgs)

	return result, nil
}

func (r *historyRepository) Append(ctx context.Context, sessionID string, msgs []model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, msg := range msgs {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		r.messages[sessionID] = append(r.messages[sessionID], msg)
	}

	return nil
}

func (r *historyRepository) GetSummary(ctx context.Context, sessionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.summaries[sessionID], nil
}

func (r *historyRepository) PutSummary(ctx context.Context, sessionID string, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summaries[sessionID] = summary
	return nil
}
