package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/repository/memory"
	"github.com/convivia-lab/convivia/pkg/usecase"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

const generatedProtocolText = "Aquí está el protocolo:\n```json\n" +
	`{
  "protocol_name": "Protocolo de actuación ante bullying",
  "current_step": 1,
  "steps": [
    {"id": 1, "title": "Entrevistar al estudiante afectado", "description": "Registrar su relato", "estimated_time": "24 horas"},
    {"id": 2, "title": "Notificar a los apoderados", "description": "Citar a entrevista", "estimated_time": "1 día hábil"}
  ]
}` + "\n```\n"

// turnLLMClient answers each call according to what the prompt asks for,
// so one client serves classification, dispatch, generation and
// suggestions within a single streamed turn.
func turnLLMClient() *mockLLMClient {
	session := &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			var prompt string
			if len(input) > 0 {
				if txt, ok := input[0].(gollem.Text); ok {
					prompt = string(txt)
				}
			}

			switch {
			case strings.Contains(prompt, "## Respuesta del asistente"):
				return &gollem.Response{Texts: []string{`{"suggestions": ["Ver el avance del protocolo"]}`}}, nil
			case strings.Contains(prompt, "Genera el protocolo de actuación para este caso"):
				return &gollem.Response{Texts: []string{generatedProtocolText}}, nil
			case strings.Contains(prompt, "## Mensaje del usuario"):
				return &gollem.Response{Texts: []string{`{"intent": "CASE_QUERY", "confidence": 0.85, "reasoning": "consulta sobre el caso"}`}}, nil
			default:
				return &gollem.Response{Texts: []string{"Aquí tienes la información del caso."}}, nil
			}
		},
	}
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return session, nil
		},
	}
}

// qaLLMClient routes like turnLLMClient but answers general questions
// and records every prompt it receives.
func qaLLMClient(prompts *[]string) *mockLLMClient {
	var mu sync.Mutex
	session := &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			var prompt string
			if len(input) > 0 {
				if txt, ok := input[0].(gollem.Text); ok {
					prompt = string(txt)
				}
			}
			mu.Lock()
			*prompts = append(*prompts, prompt)
			mu.Unlock()

			switch {
			case strings.Contains(prompt, "## Conversación completa"):
				return &gollem.Response{Texts: []string{"El encargado consultó dudas generales de convivencia."}}, nil
			case strings.Contains(prompt, "## Respuesta del asistente"):
				return &gollem.Response{Texts: []string{`{"suggestions": []}`}}, nil
			case strings.Contains(prompt, "## Mensaje del usuario"):
				return &gollem.Response{Texts: []string{`{"intent": "SIMPLE_QA", "confidence": 0.9, "reasoning": "pregunta general"}`}}, nil
			default:
				return &gollem.Response{Texts: []string{"La convivencia escolar se rige por la normativa vigente."}}, nil
			}
		},
	}
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return session, nil
		},
	}
}

func testRegistry() *model.SchoolRegistry {
	registry := model.NewSchoolRegistry()
	registry.Register(&model.SchoolEntry{
		School: model.School{ID: "school-1", Name: "Colegio San Martín"},
		Bucket: "school-1-docs",
	})
	return registry
}

func documentedCase() *model.Case {
	return &model.Case{
		Title:        "Agresión reiterada en el patio",
		Description:  "Un estudiante de 7°B reporta agresiones durante los recreos",
		CaseType:     "bullying",
		Status:       types.CaseStatusOpen,
		ReporterName: "Profesora jefe",
		SessionID:    "session-e2e",
		Parties: []model.InvolvedParty{
			{Name: "Pedro Soto", Age: 12, Course: "7° Básico B", Role: "afectado"},
			{Name: "Diego Rojas", Age: 13, Course: "7° Básico B", Role: "denunciado"},
		},
		IncidentDate: "la semana pasada",
	}
}

func collectTurn(t *testing.T, uc *usecase.UseCases, in usecase.TurnInput) []model.ChatEvent {
	t.Helper()
	var events []model.ChatEvent
	err := uc.StreamTurn(context.Background(), in, func(ev model.ChatEvent) error {
		events = append(events, ev)
		return nil
	})
	gt.NoError(t, err).Required()
	return events
}

func TestStreamTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("activation phrase generates and persists a protocol", func(t *testing.T) {
		repo := memory.New()
		created, err := repo.Case().Create(ctx, documentedCase())
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		events := collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-e2e",
			Message:   "Por favor activa el protocolo para este caso",
		})

		// Thinking precedes content, suggestions close the turn.
		var sawContent bool
		for _, ev := range events {
			switch ev.Type {
			case types.ChatEventThinking:
				gt.Bool(t, sawContent).False()
			case types.ChatEventContent:
				sawContent = true
			}
		}
		gt.Bool(t, sawContent).True()
		gt.Value(t, events[len(events)-1].Type).Equal(types.ChatEventSuggestions)

		// The protocol block follows the foreground response after a divider.
		var full strings.Builder
		for _, ev := range events {
			if ev.Type == types.ChatEventContent {
				full.WriteString(ev.Content)
			}
		}
		gt.String(t, full.String()).Contains("---")
		gt.String(t, full.String()).Contains("Protocolo de actuación ante bullying")

		stored, err := repo.Protocol().GetByCase(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored).NotNil()
		gt.Array(t, stored.Steps).Length(2)
	})

	t.Run("existing protocol short-circuits regeneration", func(t *testing.T) {
		repo := memory.New()
		created, err := repo.Case().Create(ctx, documentedCase())
		gt.NoError(t, err).Required()

		existing := storedProtocol()
		existing.CaseID = created.ID
		existing.SessionID = "session-e2e"
		existing.IsCompleted = true
		for i := range existing.Steps {
			existing.Steps[i].Status = types.StepStatusCompleted
		}
		gt.NoError(t, repo.Protocol().Put(ctx, existing)).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		events := collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-e2e",
			Message:   "Activa el protocolo de nuevo",
		})

		var full strings.Builder
		for _, ev := range events {
			if ev.Type == types.ChatEventContent {
				full.WriteString(ev.Content)
			}
		}
		gt.String(t, full.String()).Contains("Ya existe un protocolo activo")

		stored, err := repo.Protocol().GetByCase(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Name).Equal(existing.Name)
		gt.Bool(t, stored.IsCompleted).True()
	})

	t.Run("missing facts block generation with an exact list", func(t *testing.T) {
		repo := memory.New()
		c := documentedCase()
		c.Parties = nil
		_, err := repo.Case().Create(ctx, c)
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		events := collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-e2e",
			Message:   "Genera el protocolo de actuación",
		})

		var full strings.Builder
		for _, ev := range events {
			if ev.Type == types.ChatEventContent {
				full.WriteString(ev.Content)
			}
		}
		gt.String(t, full.String()).Contains("nombres de los estudiantes involucrados")

		stored, err := repo.Protocol().GetBySession(ctx, "session-e2e")
		gt.NoError(t, err)
		gt.Value(t, stored).Nil()
	})

	t.Run("ambiguous turn asks for clarification and saves the pair", func(t *testing.T) {
		repo := memory.New()
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "SIMPLE_QA", "confidence": 0.3, "reasoning": "mensaje ambiguo"}`), nil
			},
		}
		uc := usecase.New(repo, client, usecase.WithSchoolRegistry(testRegistry()))

		events := collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-ambiguous",
			Message:   "mmm eso",
		})

		gt.Array(t, events).Length(1).Required()
		gt.Value(t, events[0].Type).Equal(types.ChatEventContent)
		gt.String(t, events[0].Content).Contains("¿Podrías indicarme")

		msgs, err := repo.History().List(ctx, "session-ambiguous")
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(2).Required()
		gt.Value(t, msgs[0].Role).Equal(types.ChatRoleHuman)
		gt.Value(t, msgs[1].Role).Equal(types.ChatRoleAssistant)
	})

	t.Run("history is appended exactly once per turn", func(t *testing.T) {
		repo := memory.New()
		_, err := repo.Case().Create(ctx, documentedCase())
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-e2e",
			Message:   "¿Qué sabemos del caso hasta ahora?",
		})

		msgs, err := repo.History().List(ctx, "session-e2e")
		gt.NoError(t, err).Required()

		var humans, assistants, markers int
		for _, m := range msgs {
			switch {
			case m.Role == types.ChatRoleHuman:
				humans++
			case m.Role == types.ChatRoleAssistant:
				assistants++
			}
			if strings.Contains(m.Content, model.CaseContextMarker) {
				markers++
			}
		}
		gt.Value(t, humans).Equal(1)
		gt.Value(t, assistants).Equal(1)
		gt.Value(t, markers).Equal(1)
	})

	t.Run("case context is injected once across turns", func(t *testing.T) {
		repo := memory.New()
		_, err := repo.Case().Create(ctx, documentedCase())
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		for _, msg := range []string{"¿Qué sabemos del caso?", "¿Y los involucrados?"} {
			collectTurn(t, uc, usecase.TurnInput{
				SchoolID:  "school-1",
				SessionID: "session-e2e",
				Message:   msg,
			})
		}

		msgs, err := repo.History().List(ctx, "session-e2e")
		gt.NoError(t, err).Required()

		var markers int
		for _, m := range msgs {
			if strings.Contains(m.Content, model.CaseContextMarker) {
				markers++
			}
		}
		gt.Value(t, markers).Equal(1)
	})

	t.Run("explicit case reference binds the session", func(t *testing.T) {
		repo := memory.New()
		c := documentedCase()
		c.SessionID = ""
		created, err := repo.Case().Create(ctx, c)
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-ref",
			Message:   "¿Cómo va el caso?",
			CaseID:    created.ID,
		})

		bound, err := repo.Case().GetBySession(ctx, "session-ref")
		gt.NoError(t, err).Required()
		gt.Value(t, bound).NotNil()
		gt.Value(t, bound.ID).Equal(created.ID)

		// The turn ran with the case in scope: its context was injected.
		msgs, err := repo.History().List(ctx, "session-ref")
		gt.NoError(t, err).Required()
		var markers int
		for _, m := range msgs {
			if strings.Contains(m.Content, model.CaseContextMarker) {
				markers++
			}
		}
		gt.Value(t, markers).Equal(1)
	})

	t.Run("case bound to another session serves the turn without rebinding", func(t *testing.T) {
		repo := memory.New()
		created, err := repo.Case().Create(ctx, documentedCase())
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-other",
			Message:   "¿Cómo va el caso?",
			CaseID:    created.ID,
		})

		// Original binding survives; the other session gains no case.
		original, err := repo.Case().GetBySession(ctx, "session-e2e")
		gt.NoError(t, err).Required()
		gt.Value(t, original).NotNil()
		gt.Value(t, original.ID).Equal(created.ID)

		other, err := repo.Case().GetBySession(ctx, "session-other")
		gt.NoError(t, err).Required()
		gt.Value(t, other).Nil()

		// The referenced case still informed the turn.
		msgs, err := repo.History().List(ctx, "session-other")
		gt.NoError(t, err).Required()
		var markers int
		for _, m := range msgs {
			if strings.Contains(m.Content, model.CaseContextMarker) {
				markers++
			}
		}
		gt.Value(t, markers).Equal(1)
	})

	t.Run("unknown explicit case fails the turn", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		err := uc.StreamTurn(ctx, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-missing",
			Message:   "¿Cómo va el caso?",
			CaseID:    404,
		}, func(model.ChatEvent) error { return nil })
		gt.Bool(t, errors.Is(err, usecase.ErrCaseNotFound)).True()

		msgs, err := repo.History().List(ctx, "session-missing")
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(0)
	})

	t.Run("stored summary reaches the dispatch context", func(t *testing.T) {
		repo := memory.New()
		gt.NoError(t, repo.History().PutSummary(ctx, "session-sum",
			"El apoderado de 7°B reportó acoso reiterado durante marzo")).Required()

		var prompts []string
		uc := usecase.New(repo, qaLLMClient(&prompts), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-sum",
			Message:   "¿Qué dice la normativa sobre convivencia escolar?",
		})

		var found bool
		for _, p := range prompts {
			if strings.Contains(p, "## Resumen de la conversación") &&
				strings.Contains(p, "acoso reiterado durante marzo") {
				found = true
			}
		}
		gt.Bool(t, found).True()
	})

	t.Run("long sessions refresh the stored summary", func(t *testing.T) {
		repo := memory.New()
		var filler []model.ChatMessage
		for i := 0; i < 6; i++ {
			filler = append(filler,
				model.ChatMessage{Role: types.ChatRoleHuman, Content: "Consulta de relleno"},
				model.ChatMessage{Role: types.ChatRoleAssistant, Content: "Respuesta de relleno"},
			)
		}
		gt.NoError(t, repo.History().Append(ctx, "session-long", filler)).Required()

		var prompts []string
		uc := usecase.New(repo, qaLLMClient(&prompts), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-long",
			Message:   "¿Cuál es el horario de atención?",
		})

		summary, err := repo.History().GetSummary(ctx, "session-long")
		gt.NoError(t, err).Required()
		gt.String(t, summary).Contains("dudas generales")
	})

	t.Run("short sessions leave the summary untouched", func(t *testing.T) {
		repo := memory.New()
		var prompts []string
		uc := usecase.New(repo, qaLLMClient(&prompts), usecase.WithSchoolRegistry(testRegistry()))

		collectTurn(t, uc, usecase.TurnInput{
			SchoolID:  "school-1",
			SessionID: "session-short",
			Message:   "¿Cuál es el horario de atención?",
		})

		summary, err := repo.History().GetSummary(ctx, "session-short")
		gt.NoError(t, err).Required()
		gt.Value(t, summary).Equal("")
	})

	t.Run("unknown school fails the turn", func(t *testing.T) {
		uc := usecase.New(memory.New(), turnLLMClient(), usecase.WithSchoolRegistry(testRegistry()))

		err := uc.StreamTurn(ctx, usecase.TurnInput{
			SchoolID:  "nope",
			SessionID: "s",
			Message:   "hola",
		}, func(model.ChatEvent) error { return nil })
		gt.Error(t, err)
	})
}
