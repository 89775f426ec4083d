package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/intent_system.md
var intentSystemPrompt string

// AmbiguityThreshold is the confidence below which the orchestrator asks a
// clarifying question instead of dispatching.
const AmbiguityThreshold = 0.6

// ClassifyInput is one user turn plus the context the router may inspect.
type ClassifyInput struct {
	Message  string
	HasFiles bool
	CaseID   int64 // 0 when no case is active
	History  []model.ChatMessage
}

// intentStrategy is one fast-path heuristic. Strategies are tried in a
// fixed order; the first match wins and no model call is made.
type intentStrategy interface {
	Name() string
	Match(in ClassifyInput) *model.IntentClassification
}

var strategies = []intentStrategy{
	emailAddressStrategy{},
	actionPhraseStrategy{},
	caseContinuationStrategy{},
	fileAnalysisStrategy{},
}

// Classify routes a user turn to one of the five intents. It never fails:
// any model-side problem degrades to SIMPLE_QA with confidence 0.5.
func (uc *UseCases) Classify(ctx context.Context, in ClassifyInput) model.IntentClassification {
	for _, s := range strategies {
		if result := s.Match(in); result != nil {
			logging.From(ctx).Debug("intent matched by heuristic",
				slog.String("strategy", s.Name()),
				slog.String("intent", result.Intent.String()))
			return *result
		}
	}

	result, err := uc.classifyWithModel(ctx, in)
	if err != nil {
		logging.From(ctx).Warn("model classification failed, defaulting to SIMPLE_QA",
			slog.Any("error", err))
		return model.IntentClassification{
			Intent:     types.IntentSimpleQA,
			Confidence: 0.5,
			Reasoning:  "clasificación degradada por error del modelo",
		}
	}
	return result
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// emailAddressStrategy: a message carrying an email address is an action
// request no matter what else it says.
type emailAddressStrategy struct{}

func (emailAddressStrategy) Name() string { return "email_address" }

func (emailAddressStrategy) Match(in ClassifyInput) *model.IntentClassification {
	if !emailPattern.MatchString(in.Message) {
		return nil
	}
	return &model.IntentClassification{
		Intent:     types.IntentToolRequired,
		Confidence: 0.98,
		Reasoning:  "el mensaje contiene una dirección de correo",
	}
}

var actionPhrases = []string{
	"envía un correo", "envia un correo", "enviar un correo",
	"envía un email", "envia un email", "mándale un correo", "mandale un correo",
	"agenda una reunión", "agenda una reunion", "agendar una reunión",
	"agenda una cita", "cítalo", "citalo", "cita a los apoderados",
	"programa una reunión", "programa una reunion",
}

type actionPhraseStrategy struct{}

func (actionPhraseStrategy) Name() string { return "action_phrase" }

func (actionPhraseStrategy) Match(in ClassifyInput) *model.IntentClassification {
	msg := strings.ToLower(in.Message)
	for _, phrase := range actionPhrases {
		if strings.Contains(msg, phrase) {
			return &model.IntentClassification{
				Intent:     types.IntentToolRequired,
				Confidence: 0.95,
				Reasoning:  "frase de acción detectada: " + phrase,
			}
		}
	}
	return nil
}

var caseVocabulary = []string{
	"denuncia", "denunciado", "afectado", "agredido", "víctima", "victima",
	"testigo", "agresor", "incidente", "ocurrió", "ocurrio",
	"fecha del incidente", "apoderado reporta", "quiero reportar",
}

// caseContinuationStrategy keeps routing to case documentation once that
// conversation has started, until a case is formally created.
type caseContinuationStrategy struct{}

func (caseContinuationStrategy) Name() string { return "case_continuation" }

func (caseContinuationStrategy) Match(in ClassifyInput) *model.IntentClassification {
	if in.CaseID != 0 {
		return nil
	}

	recent := in.History
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}

	for _, msg := range recent {
		content := strings.ToLower(msg.Content)
		for _, word := range caseVocabulary {
			if strings.Contains(content, word) {
				return &model.IntentClassification{
					Intent:     types.IntentCaseCreation,
					Confidence: 0.90,
					Reasoning:  "conversación de documentación de caso en curso",
				}
			}
		}
	}
	return nil
}

var analysisVerbs = []string{"analiza", "revisa", "resume", "examina", "lee", "evalúa", "evalua"}
var fileNouns = []string{"documento", "archivo", "informe", "acta", "pdf", "denuncia escrita"}

type fileAnalysisStrategy struct{}

func (fileAnalysisStrategy) Name() string { return "file_analysis" }

func (fileAnalysisStrategy) Match(in ClassifyInput) *model.IntentClassification {
	if !in.HasFiles {
		return nil
	}

	msg := strings.ToLower(in.Message)

	matched := false
	for _, v := range analysisVerbs {
		if strings.Contains(msg, v) {
			matched = true
			break
		}
	}
	if !matched {
		for _, n := range fileNouns {
			if strings.Contains(msg, n) {
				matched = true
				break
			}
		}
	}
	// A short question with files attached is about the files.
	if !matched && strings.Contains(msg, "?") && len([]rune(in.Message)) < 80 {
		matched = true
	}
	if !matched {
		return nil
	}

	return &model.IntentClassification{
		Intent:     types.IntentDocumentAnalysis,
		Confidence: 0.95,
		Reasoning:  "archivos adjuntos con solicitud de análisis",
	}
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (uc *UseCases) classifyWithModel(ctx context.Context, in ClassifyInput) (model.IntentClassification, error) {
	schema := &gollem.Parameter{
		Title:       "IntentClassification",
		Description: "Classification of a user message into one execution path",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"intent": {
				Type:        gollem.TypeString,
				Description: "One of DOCUMENT_ANALYSIS, SIMPLE_QA, TOOL_REQUIRED, CASE_QUERY, CASE_CREATION",
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "Confidence between 0 and 1",
				Required:    true,
			},
			"reasoning": {
				Type:        gollem.TypeString,
				Description: "Short diagnostic explanation in Spanish",
				Required:    true,
			},
		},
	}

	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(intentSystemPrompt),
	)
	if err != nil {
		return model.IntentClassification{}, err
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildIntentPrompt(in)))
	if err != nil {
		return model.IntentClassification{}, err
	}
	if len(resp.Texts) == 0 {
		return model.IntentClassification{}, ErrEmptyModelResponse
	}

	var parsed intentResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return model.IntentClassification{}, err
	}

	intent, err := types.ParseIntent(parsed.Intent)
	if err != nil {
		return model.IntentClassification{}, err
	}

	return model.IntentClassification{
		Intent:     intent,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}

func buildIntentPrompt(in ClassifyInput) string {
	var b strings.Builder

	b.WriteString("## Mensaje del usuario\n\n")
	b.WriteString(in.Message)
	b.WriteString("\n\n## Contexto\n\n")
	if in.HasFiles {
		b.WriteString("- El mensaje incluye archivos adjuntos.\n")
	}
	if in.CaseID != 0 {
		b.WriteString("- Hay un caso activo en esta conversación.\n")
	}

	recent := in.History
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	if len(recent) > 0 {
		b.WriteString("\n## Últimos mensajes\n\n")
		for _, msg := range recent {
			b.WriteString("- ")
			b.WriteString(msg.Role.String())
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	return b.String()
}
