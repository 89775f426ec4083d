package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const genericNextStep = "Continúa con el protocolo según lo planificado."

// NextStepInstruction derives the instruction shown beneath a protocol
// card: the first in_progress step, falling back to the first pending
// step, falling back to a generic continuation message.
func NextStepInstruction(p *model.Protocol) string {
	for _, s := range p.Steps {
		if s.Status == types.StepStatusInProgress {
			return s.Title
		}
	}
	for _, s := range p.Steps {
		if s.Status == types.StepStatusPending {
			return s.Title
		}
	}
	return genericNextStep
}

// FormatProtocolResponse serializes a protocol into human-readable text
// with an embedded machine-readable card block the client renders as an
// interactive step list.
func FormatProtocolResponse(p *model.Protocol) (string, error) {
	if p == nil {
		return "", goerr.New("no protocol to format")
	}

	card := model.ProtocolCard{
		ProtocolName:        p.Name,
		Steps:               make([]model.ProtocolCardStep, 0, len(p.Steps)),
		CurrentStep:         p.CurrentStep,
		IsCompleted:         p.IsCompleted,
		NextStepInstruction: NextStepInstruction(p),
	}

	for _, s := range p.Steps {
		cs := model.ProtocolCardStep{
			ID:            s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Status:        s.Status.String(),
			EstimatedTime: s.EstimatedTime,
			Notes:         s.Notes,
		}
		if s.Deadline != nil {
			cs.Deadline = s.Deadline.Format(time.DateOnly)
		}
		if s.CompletedAt != nil {
			cs.CompletedAt = s.CompletedAt.Format(time.RFC3339)
		}
		card.Steps = append(card.Steps, cs)
	}

	block, err := model.MarshalDraftBlock(card)
	if err != nil {
		return "", goerr.Wrap(err, "failed to render protocol card", goerr.V("protocol", p.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "He preparado el protocolo **%s** para este caso.\n\n", p.Name)
	b.WriteString(block)
	fmt.Fprintf(&b, "\n\n**Próximo paso:** %s\n", card.NextStepInstruction)

	return b.String(), nil
}
