package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

//go:embed prompt/case_query_system.md
var caseQuerySystemPrompt string

const noActiveCaseMsg = "No hay un caso activo en esta conversación. " +
	"Si quieres consultar un caso existente, indícame su número, o describe " +
	"un incidente nuevo para documentarlo."

// dispatchCaseQuery answers strictly from already-loaded case data. The
// system prompt forbids fabrication; anything not in the record must be
// reported as not determinable.
func (uc *UseCases) dispatchCaseQuery(ctx context.Context, req dispatchRequest) (string, error) {
	if req.Case == nil {
		return noActiveCaseMsg, nil
	}

	var b strings.Builder
	b.WriteString("## Datos del caso\n\n")
	b.WriteString(renderCase(req.Case))

	if view, err := uc.GetProtocol(ctx, req.Case.ID, req.SessionID); err == nil && view != nil {
		b.WriteString("\n## Protocolo\n\n")
		fmt.Fprintf(&b, "**%s** — avance %d/%d\n", view.Protocol.Name,
			view.Progress.Completed, view.Progress.Total)
		for _, s := range view.Protocol.Steps {
			line := fmt.Sprintf("- [%s] %d. %s", s.Status, s.ID, s.Title)
			if s.Deadline != nil {
				line += " (plazo " + s.Deadline.Format(time.DateOnly) + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n## Pregunta\n\n")
	b.WriteString(req.Message)

	return uc.generate(ctx, caseQuerySystemPrompt, b.String())
}

func renderCase(c *model.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Caso #%d:** %s\n", c.ID, c.Title)
	fmt.Fprintf(&b, "**Tipo:** %s\n", c.CaseType)
	fmt.Fprintf(&b, "**Estado:** %s\n", c.Status.Normalize())
	fmt.Fprintf(&b, "**Descripción:** %s\n", c.Description)
	if c.ReporterName != "" {
		fmt.Fprintf(&b, "**Reportado por:** %s\n", c.ReporterName)
	}
	if c.IncidentDate != "" {
		fmt.Fprintf(&b, "**Fecha del incidente:** %s\n", c.IncidentDate)
	}
	if len(c.Parties) > 0 {
		b.WriteString("**Involucrados:**\n")
		for _, p := range c.Parties {
			fmt.Fprintf(&b, "- %s (%d años, %s) — %s\n", p.Name, p.Age, p.Course, p.Role)
		}
	}
	return b.String()
}
