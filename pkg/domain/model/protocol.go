package model

import (
	"sort"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/types"
)

// ProtocolStep is a single step of an action protocol. IDs are stable
// ordinals within a protocol: unique, ascending, not necessarily contiguous.
type ProtocolStep struct {
	ID            int
	Title         string
	Description   string
	Status        types.StepStatus
	EstimatedTime string // free-text duration phrase, e.g. "3 días hábiles"
	Deadline      *time.Time
	CompletedAt   *time.Time
	Notes         string
}

// Protocol is a named, ordered procedure the school should follow for a
// case. It is extracted from generated text and persisted wholesale; there
// is no partial-field patch semantics (load-modify-save).
type Protocol struct {
	Name      string
	CaseID    int64 // 0 for session-only flows (no case yet)
	SessionID string
	Steps     []ProtocolStep

	// CurrentStep is the pointer used only during extraction to seed the
	// initial step statuses. It is not re-derived afterward.
	CurrentStep int

	IsCompleted bool

	// ExtractedFrom keeps the original generation the protocol was parsed
	// from, for debugging and audit.
	ExtractedFrom  string
	SourceDocument string

	// BaseDate is captured once (case creation time) and reused for every
	// deadline recalculation.
	BaseDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SortSteps orders steps by ID ascending.
func (p *Protocol) SortSteps() {
	sort.Slice(p.Steps, func(i, j int) bool {
		return p.Steps[i].ID < p.Steps[j].ID
	})
}

// Step returns the step with the given ID, or nil.
func (p *Protocol) Step(id int) *ProtocolStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// Progress summarizes step completion for API consumers.
type Progress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Progress computes the completion progress of the protocol.
func (p *Protocol) Progress() Progress {
	prog := Progress{Total: len(p.Steps)}
	for _, s := range p.Steps {
		if s.Status == types.StepStatusCompleted {
			prog.Completed++
		}
	}
	if prog.Total > 0 {
		prog.Percentage = float64(prog.Completed) / float64(prog.Total) * 100
	}
	return prog
}

// Clone returns a deep copy of the protocol.
func (p *Protocol) Clone() *Protocol {
	if p == nil {
		return nil
	}
	copied := *p
	copied.Steps = make([]ProtocolStep, len(p.Steps))
	for i, s := range p.Steps {
		step := s
		if s.Deadline != nil {
			d := *s.Deadline
			step.Deadline = &d
		}
		if s.CompletedAt != nil {
			c := *s.CompletedAt
			step.CompletedAt = &c
		}
		copied.Steps[i] = step
	}
	return &copied
}
