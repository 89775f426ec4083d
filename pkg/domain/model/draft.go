package model

import (
	"encoding/json"
	"fmt"

	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Draft is an unsent action awaiting human confirmation. Each variant is
// serialized as a self-describing JSON block with a "type" discriminator,
// embedded in the response text for the client to render as a card.
type Draft interface {
	Kind() types.DraftKind
}

// EmailDraft is an email prepared for a confirm/edit step. It is never
// sent by the assistant itself.
type EmailDraft struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

func (EmailDraft) Kind() types.DraftKind { return types.DraftKindEmail }

// CalendarDraft is a calendar event prepared for a confirm/edit step.
type CalendarDraft struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Time        string   `json:"time"` // HH:MM
	Attendees   []string `json:"attendees,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (CalendarDraft) Kind() types.DraftKind { return types.DraftKindCalendar }

// ProtocolCard is the protocol rendered as an interactive block: the full
// step list plus the instruction for the next actionable step.
type ProtocolCard struct {
	ProtocolName        string             `json:"protocol_name"`
	Steps               []ProtocolCardStep `json:"steps"`
	CurrentStep         int                `json:"current_step"`
	IsCompleted         bool               `json:"is_completed"`
	NextStepInstruction string             `json:"next_step_instruction"`
}

// ProtocolCardStep is the wire form of one step inside a ProtocolCard.
type ProtocolCardStep struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	Deadline      string `json:"deadline,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (ProtocolCard) Kind() types.DraftKind { return types.DraftKindProtocol }

// MarshalDraftBlock serializes a draft as a fenced JSON block with the
// "type" discriminator injected, ready to embed in response text.
func MarshalDraftBlock(d Draft) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal draft", goerr.V("kind", d.Kind()))
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", goerr.Wrap(err, "failed to decode draft fields")
	}
	fields["type"] = d.Kind().String()

	tagged, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal tagged draft")
	}

	return fmt.Sprintf("```json\n%s\n```", tagged), nil
}
