package interfaces

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

// HistoryRepository persists per-session conversation logs. The log is
// append-only; there is no optimistic-concurrency protection against two
// simultaneous turns on one session (one active turn per session assumed).
type HistoryRepository interface {
	// List returns the session's messages in chronological order.
	// A missing session yields an empty slice, not an error.
	List(ctx context.Context, sessionID string) ([]model.ChatMessage, error)

	// Append appends messages to the session's log
	Append(ctx context.Context, sessionID string, msgs []model.ChatMessage) error

	// GetSummary returns the stored context summary for the session,
	// or "" when none has been saved.
	GetSummary(ctx context.Context, sessionID string) (string, error)

	// PutSummary stores the context summary for the session
	PutSummary(ctx context.Context, sessionID string, summary string) error
}
