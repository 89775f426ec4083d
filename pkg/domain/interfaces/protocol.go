package interfaces

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

// ProtocolRepository persists protocol instances. A protocol is keyed by
// case ID as its primary identity, mirrored by session ID so it survives
// before a case exists. Writes are wholesale upserts: callers must
// load-modify-save.
type ProtocolRepository interface {
	// Put saves the protocol under its case ID and mirrors it under its
	// session ID. Idempotent upsert.
	Put(ctx context.Context, p *model.Protocol) error

	// GetByCase retrieves the protocol for a case.
	// Returns nil, nil when no protocol exists (a normal state, not an error).
	GetByCase(ctx context.Context, caseID int64) (*model.Protocol, error)

	// GetBySession retrieves the protocol for a session.
	// Returns nil, nil when no protocol exists.
	GetBySession(ctx context.Context, sessionID string) (*model.Protocol, error)

	// DeleteByCase removes the protocol of a case and its session mirror.
	// Used by the case deletion cascade.
	DeleteByCase(ctx context.Context, caseID int64) error
}
