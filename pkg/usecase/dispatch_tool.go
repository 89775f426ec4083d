package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/tool_system.md
var toolSystemPrompt string

var calendarWords = []string{"reunión", "reunion", "cita", "agenda", "agendar", "calendario", "entrevista"}

var timePattern = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

// dispatchTool prepares an email or calendar draft from the user's
// request. It only drafts; sending or scheduling stays a human decision.
// Missing fields get deterministic defaults so the flow never stalls
// waiting on the user.
func (uc *UseCases) dispatchTool(ctx context.Context, req dispatchRequest) (string, error) {
	var draft model.Draft
	if wantsCalendar(req.Message) {
		draft = uc.extractCalendarDraft(ctx, req)
	} else {
		draft = uc.extractEmailDraft(ctx, req)
	}

	block, err := model.MarshalDraftBlock(draft)
	if err != nil {
		return "", goerr.Wrap(err, "failed to render draft block")
	}

	var b strings.Builder
	switch draft.Kind() {
	case types.DraftKindCalendar:
		b.WriteString("He preparado un borrador de la reunión:\n\n")
	default:
		b.WriteString("He preparado un borrador del correo:\n\n")
	}
	b.WriteString(block)
	b.WriteString("\n\nRevisa el borrador, edita lo que necesites y confirma para continuar. No se enviará nada sin tu confirmación.")

	return b.String(), nil
}

func wantsCalendar(message string) bool {
	msg := strings.ToLower(message)
	for _, w := range calendarWords {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

func (uc *UseCases) extractEmailDraft(ctx context.Context, req dispatchRequest) model.EmailDraft {
	schema := &gollem.Parameter{
		Title: "EmailDraft",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"recipient": {Type: gollem.TypeString, Description: "Dirección de correo del destinatario, vacío si no aparece", Required: true},
			"subject":   {Type: gollem.TypeString, Description: "Asunto del correo", Required: true},
			"body":      {Type: gollem.TypeString, Description: "Cuerpo del correo, formal y breve", Required: true},
		},
	}

	var draft model.EmailDraft
	if err := uc.extractStructured(ctx, schema, req, &draft); err != nil {
		logging.From(ctx).Warn("email param extraction failed, using fallbacks", slog.Any("error", err))
	}

	// Deterministic fallbacks for anything the extraction left empty.
	if draft.Recipient == "" {
		draft.Recipient = emailPattern.FindString(req.Message)
	}
	if draft.Subject == "" {
		draft.Subject = "Comunicación de convivencia escolar"
		if req.Case != nil {
			draft.Subject = "Comunicación sobre el caso: " + req.Case.Title
		}
	}
	if draft.Body == "" {
		draft.Body = "Estimado/a:\n\nLe escribimos desde el equipo de convivencia escolar " +
			"para comunicarle novedades. Quedamos atentos a su respuesta.\n\nSaludos cordiales."
	}

	return draft
}

func (uc *UseCases) extractCalendarDraft(ctx context.Context, req dispatchRequest) model.CalendarDraft {
	schema := &gollem.Parameter{
		Title: "CalendarDraft",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"title":       {Type: gollem.TypeString, Description: "Título de la reunión", Required: true},
			"date":        {Type: gollem.TypeString, Description: "Fecha en formato YYYY-MM-DD, vacío si no aparece", Required: true},
			"time":        {Type: gollem.TypeString, Description: "Hora en formato HH:MM, vacío si no aparece", Required: true},
			"attendees":   {Type: gollem.TypeArray, Items: &gollem.Parameter{Type: gollem.TypeString}, Description: "Nombres o correos de los asistentes"},
			"description": {Type: gollem.TypeString, Description: "Objetivo de la reunión"},
		},
	}

	var draft model.CalendarDraft
	if err := uc.extractStructured(ctx, schema, req, &draft); err != nil {
		logging.From(ctx).Warn("calendar param extraction failed, using fallbacks", slog.Any("error", err))
	}

	msg := strings.ToLower(req.Message)
	if draft.Date == "" {
		switch {
		case strings.Contains(msg, "mañana"):
			draft.Date = time.Now().AddDate(0, 0, 1).Format(time.DateOnly)
		case strings.Contains(msg, "hoy"):
			draft.Date = time.Now().Format(time.DateOnly)
		default:
			// Next business-day-ish default: tomorrow.
			draft.Date = time.Now().AddDate(0, 0, 1).Format(time.DateOnly)
		}
	}
	if draft.Time == "" {
		if m := timePattern.FindString(req.Message); m != "" {
			draft.Time = m
		} else {
			draft.Time = "09:00"
		}
	}
	if draft.Title == "" {
		draft.Title = "Reunión de convivencia escolar"
		if req.Case != nil {
			draft.Title = "Reunión por caso: " + req.Case.Title
		}
	}
	if draft.Description == "" {
		draft.Description = "Reunión coordinada por el equipo de convivencia escolar."
	}

	return draft
}

// extractStructured runs one constrained structured-output call and
// decodes the result into out. Failures leave out zero-valued; callers
// apply their deterministic defaults on top.
func (uc *UseCases) extractStructured(ctx context.Context, schema *gollem.Parameter, req dispatchRequest, out any) error {
	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(toolSystemPrompt),
	)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("## Petición\n\n")
	b.WriteString(req.Message)
	if block := req.contextBlock(4); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	if req.Case != nil {
		b.WriteString("\n\n## Caso activo\n\n")
		b.WriteString(renderCase(req.Case))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(b.String()))
	if err != nil {
		return err
	}
	if len(resp.Texts) == 0 {
		return ErrEmptyModelResponse
	}
	return json.Unmarshal([]byte(resp.Texts[0]), out)
}
