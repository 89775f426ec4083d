package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/case_creation_system.md
var caseCreationSystemPrompt string

// caseTypeKeywords maps vocabulary to a case type, checked in order.
// The first matching entry wins; "conflicto entre pares" is the default.
var caseTypeKeywords = []struct {
	caseType string
	words    []string
}{
	{"ciberacoso", []string{"ciberacoso", "cyberbullying", "redes sociales", "whatsapp", "instagram"}},
	{"bullying", []string{"bullying", "acoso", "hostigamiento", "matonaje"}},
	{"violencia física", []string{"golpe", "golpeó", "pelea", "agresión física", "agredió", "empujó"}},
	{"discriminación", []string{"discrimina", "discriminación", "racismo", "xenofobia"}},
	{"abuso", []string{"abuso", "connotación sexual"}},
}

// caseFacts is the structured-output shape for opportunistic fact
// extraction. Empty strings and zero ages mean "not stated yet".
type caseFacts struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ReporterName string `json:"reporter_name"`
	IncidentDate string `json:"incident_date"`
	Parties      []struct {
		Name   string `json:"name"`
		Age    int    `json:"age"`
		Course string `json:"course"`
		Role   string `json:"role"`
	} `json:"parties"`
}

// dispatchCaseCreation guides the documentation of a new case. It
// classifies the case type from vocabulary, pulls the applicable school
// and legal policy fragments, and recalls every fact the user already
// stated so the assistant never asks for the same information twice.
// The session-bound case record is created or updated as a side effect.
func (uc *UseCases) dispatchCaseCreation(ctx context.Context, req dispatchRequest) (string, error) {
	logger := logging.From(ctx)
	caseType := classifyCaseType(req.Message, req.History)

	facts, err := uc.extractCaseFacts(ctx, req)
	if err != nil {
		// Extraction is opportunistic; the conversation continues and the
		// facts get another chance next turn.
		logger.Warn("case fact extraction failed", slog.Any("error", err))
		facts = nil
	}

	c, err := uc.upsertSessionCase(ctx, req, caseType, facts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## Relato del usuario\n\n")
	b.WriteString(req.Message)

	if block := req.contextBlock(6); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}

	b.WriteString("\n\n## Caso en documentación\n\n")
	b.WriteString(renderCase(c))
	if missing := c.MissingFacts(); len(missing) > 0 {
		b.WriteString("\nDatos que aún faltan: ")
		b.WriteString(strings.Join(missing, ", "))
		b.WriteString("\n")
	} else {
		b.WriteString("\nEl caso ya tiene los datos mínimos para generar un protocolo.\n")
	}

	if uc.search != nil {
		normative, err := uc.search.QueryDual(ctx, req.SchoolID, caseType+" "+req.Message, ragLimit, ragBudget)
		if err != nil {
			logger.Warn("policy search failed during case creation", slog.Any("error", err))
		} else if normative != "" {
			b.WriteString("\n## Normativa aplicable\n\n")
			b.WriteString(normative)
		}
	}

	return uc.generate(ctx, caseCreationSystemPrompt, b.String())
}

func classifyCaseType(message string, history []model.ChatMessage) string {
	corpus := strings.ToLower(message)
	for _, m := range history {
		if m.Role == types.ChatRoleHuman {
			corpus += "\n" + strings.ToLower(m.Content)
		}
	}

	for _, entry := range caseTypeKeywords {
		for _, w := range entry.words {
			if strings.Contains(corpus, w) {
				return entry.caseType
			}
		}
	}
	return "conflicto entre pares"
}

func (uc *UseCases) extractCaseFacts(ctx context.Context, req dispatchRequest) (*caseFacts, error) {
	partySchema := &gollem.Parameter{
		Type: gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"name":   {Type: gollem.TypeString, Description: "Nombre del estudiante, vacío si no aparece", Required: true},
			"age":    {Type: gollem.TypeInteger, Description: "Edad, 0 si no aparece", Required: true},
			"course": {Type: gollem.TypeString, Description: "Curso, por ejemplo 7° Básico A, vacío si no aparece", Required: true},
			"role":   {Type: gollem.TypeString, Description: "afectado, denunciado o testigo", Required: true},
		},
	}
	schema := &gollem.Parameter{
		Title: "CaseFacts",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"title":         {Type: gollem.TypeString, Description: "Título breve del caso", Required: true},
			"description":   {Type: gollem.TypeString, Description: "Resumen de los hechos relatados", Required: true},
			"reporter_name": {Type: gollem.TypeString, Description: "Quién reporta, vacío si no aparece"},
			"incident_date": {Type: gollem.TypeString, Description: "Fecha del incidente tal como fue relatada"},
			"parties":       {Type: gollem.TypeArray, Items: partySchema, Description: "Estudiantes involucrados mencionados hasta ahora", Required: true},
		},
	}

	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt("Extrae los datos del caso mencionados en la conversación. No inventes datos: deja vacío lo que no aparezca."),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create fact extraction session")
	}

	var b strings.Builder
	if block := req.contextBlock(10); block != "" {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	b.WriteString("## Mensaje actual\n\n")
	b.WriteString(req.Message)

	resp, err := session.GenerateContent(ctx, gollem.Text(b.String()))
	if err != nil {
		return nil, goerr.Wrap(err, "fact extraction call failed")
	}
	if len(resp.Texts) == 0 {
		return nil, ErrEmptyModelResponse
	}

	var facts caseFacts
	if err := json.Unmarshal([]byte(resp.Texts[0]), &facts); err != nil {
		return nil, goerr.Wrap(err, "failed to decode extracted facts")
	}
	return &facts, nil
}

// upsertSessionCase merges newly extracted facts into the session's case,
// creating it on first mention. Existing non-empty fields are never
// overwritten: the user's earlier statements win over re-extraction noise.
func (uc *UseCases) upsertSessionCase(ctx context.Context, req dispatchRequest, caseType string, facts *caseFacts) (*model.Case, error) {
	c := req.Case
	if c == nil {
		existing, err := uc.repo.Case().GetBySession(ctx, req.SessionID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to look up session case", goerr.V(SessionIDKey, req.SessionID))
		}
		c = existing
	}

	isNew := c == nil
	if isNew {
		c = &model.Case{
			Title:     "Caso en documentación",
			CaseType:  caseType,
			Status:    types.CaseStatusOpen,
			SessionID: req.SessionID,
		}
	}
	if c.CaseType == "" || c.CaseType == "conflicto entre pares" {
		c.CaseType = caseType
	}

	if facts != nil {
		if c.Title == "" || c.Title == "Caso en documentación" {
			if facts.Title != "" {
				c.Title = facts.Title
			}
		}
		if facts.Description != "" {
			c.Description = facts.Description
		}
		if c.ReporterName == "" {
			c.ReporterName = facts.ReporterName
		}
		if c.IncidentDate == "" {
			c.IncidentDate = facts.IncidentDate
		}
		mergeParties(c, facts)
	}

	if isNew {
		created, err := uc.repo.Case().Create(ctx, c)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create session case", goerr.V(SessionIDKey, req.SessionID))
		}
		return created, nil
	}

	updated, err := uc.repo.Case().Update(ctx, c)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update session case", goerr.V(CaseIDKey, c.ID))
	}
	return updated, nil
}

func mergeParties(c *model.Case, facts *caseFacts) {
	for _, p := range facts.Parties {
		if p.Name == "" {
			continue
		}

		var found bool
		for i := range c.Parties {
			if !strings.EqualFold(c.Parties[i].Name, p.Name) {
				continue
			}
			found = true
			if c.Parties[i].Age == 0 {
				c.Parties[i].Age = p.Age
			}
			if c.Parties[i].Course == "" {
				c.Parties[i].Course = p.Course
			}
			if c.Parties[i].Role == "" {
				c.Parties[i].Role = p.Role
			}
			break
		}
		if !found {
			c.Parties = append(c.Parties, model.InvolvedParty{
				Name:   p.Name,
				Age:    p.Age,
				Course: p.Course,
				Role:   p.Role,
			})
		}
	}
}
