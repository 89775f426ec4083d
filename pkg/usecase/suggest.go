package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/suggest_system.md
var suggestSystemPrompt string

const maxSuggestions = 3

// suggest produces up to three follow-up suggestions for the turn that
// just finished. It is strictly best effort: any failure returns nil and
// the turn simply carries no suggestions event.
func (uc *UseCases) suggest(ctx context.Context, message, response string) []string {
	logger := logging.From(ctx)

	schema := &gollem.Parameter{
		Title: "Suggestions",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"suggestions": {
				Type:        gollem.TypeArray,
				Items:       &gollem.Parameter{Type: gollem.TypeString},
				Description: "Entre 1 y 3 acciones siguientes, frases cortas en español",
				Required:    true,
			},
		},
	}

	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(suggestSystemPrompt),
	)
	if err != nil {
		logger.Warn("failed to create suggestion session", slog.Any("error", err))
		return nil
	}

	prompt := "## Mensaje del usuario\n\n" + message + "\n\n## Respuesta del asistente\n\n" + response
	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil || len(resp.Texts) == 0 {
		logger.Warn("suggestion generation failed", slog.Any("error", err))
		return nil
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(resp.Texts[0]), &out); err != nil {
		logger.Warn("failed to decode suggestions", slog.Any("error", err))
		return nil
	}

	var suggestions []string
	for _, s := range out.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}
