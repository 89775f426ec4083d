package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/repository/memory"
	"github.com/convivia-lab/convivia/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"Respuesta de prueba del asistente."},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

// jsonSession returns a session that always answers with the given JSON text.
func jsonSession(text string) *mockLLMSession {
	return &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{text}}, nil
		},
	}
}

// failingLLMClient fails every session creation; tests using it verify
// that no model call is needed, or that degradation is safe.
func failingLLMClient() *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return nil, goerr.New("llm unavailable")
		},
	}
}

func TestClassifyHeuristics(t *testing.T) {
	ctx := context.Background()

	t.Run("email address wins over any other content", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message:  "Envía esto a juan@ejemplo.cl analizando el archivo",
			HasFiles: true,
		})

		gt.Value(t, result.Intent).Equal(types.IntentToolRequired)
		gt.Bool(t, result.Confidence >= 0.95).True()
	})

	t.Run("action phrase routes to tool", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Por favor agenda una reunión con los apoderados del 7°B",
		})

		gt.Value(t, result.Intent).Equal(types.IntentToolRequired)
		gt.Value(t, result.Confidence).Equal(0.95)
	})

	t.Run("case documentation conversation keeps routing to case creation", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Se llama Pedro y tiene 12 años",
			History: []model.ChatMessage{
				{Role: types.ChatRoleHuman, Content: "Quiero reportar un incidente en el patio", CreatedAt: time.Now()},
				{Role: types.ChatRoleAssistant, Content: "Cuéntame qué ocurrió", CreatedAt: time.Now()},
			},
		})

		gt.Value(t, result.Intent).Equal(types.IntentCaseCreation)
		gt.Value(t, result.Confidence).Equal(0.90)
	})

	t.Run("active case disables continuation bias", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "CASE_QUERY", "confidence": 0.82, "reasoning": "pregunta sobre el caso"}`), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "¿Cuál es el estado?",
			CaseID:  42,
			History: []model.ChatMessage{
				{Role: types.ChatRoleHuman, Content: "Quiero reportar un incidente", CreatedAt: time.Now()},
			},
		})

		gt.Value(t, result.Intent).Equal(types.IntentCaseQuery)
		gt.Value(t, result.Confidence).Equal(0.82)
	})

	t.Run("continuation bias only reads recent history", func(t *testing.T) {
		history := []model.ChatMessage{
			{Role: types.ChatRoleHuman, Content: "Quiero reportar un incidente", CreatedAt: time.Now()},
		}
		for i := 0; i < 6; i++ {
			history = append(history, model.ChatMessage{
				Role: types.ChatRoleHuman, Content: "Hablemos de otra cosa", CreatedAt: time.Now(),
			})
		}

		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "SIMPLE_QA", "confidence": 0.9, "reasoning": "pregunta general"}`), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "¿Qué día es la próxima reunión de profesores?",
			History: history,
		})

		gt.Value(t, result.Intent).Equal(types.IntentSimpleQA)
	})

	t.Run("files with analysis verb route to document analysis", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message:  "Revisa este informe por favor",
			HasFiles: true,
		})

		gt.Value(t, result.Intent).Equal(types.IntentDocumentAnalysis)
		gt.Value(t, result.Confidence).Equal(0.95)
	})

	t.Run("short question with files routes to document analysis", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message:  "¿Qué opinas de esto?",
			HasFiles: true,
		})

		gt.Value(t, result.Intent).Equal(types.IntentDocumentAnalysis)
	})

	t.Run("files without analysis cues fall through to the model", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "SIMPLE_QA", "confidence": 0.7, "reasoning": "sin señal de análisis"}`), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message:  "Aquí queda guardado el material de la charla de ayer para el registro anual del equipo",
			HasFiles: true,
		})

		gt.Value(t, result.Intent).Equal(types.IntentSimpleQA)
	})
}

func TestClassifyModelFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("model result is parsed", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "DOCUMENT_ANALYSIS", "confidence": 0.74, "reasoning": "menciona un acta"}`), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Necesito entender qué concluyó el consejo",
		})

		gt.Value(t, result.Intent).Equal(types.IntentDocumentAnalysis)
		gt.Value(t, result.Confidence).Equal(0.74)
	})

	t.Run("model failure degrades to simple QA", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingLLMClient())

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Necesito orientación sobre un tema delicado",
		})

		gt.Value(t, result.Intent).Equal(types.IntentSimpleQA)
		gt.Value(t, result.Confidence).Equal(0.5)
	})

	t.Run("malformed model output degrades to simple QA", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession("no soy json"), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Necesito orientación sobre un tema delicado",
		})

		gt.Value(t, result.Intent).Equal(types.IntentSimpleQA)
		gt.Value(t, result.Confidence).Equal(0.5)
	})

	t.Run("unknown intent label degrades to simple QA", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return jsonSession(`{"intent": "SOMETHING_ELSE", "confidence": 0.9, "reasoning": "x"}`), nil
			},
		}
		uc := usecase.New(memory.New(), client)

		result := uc.Classify(ctx, usecase.ClassifyInput{
			Message: "Necesito orientación",
		})

		gt.Value(t, result.Intent).Equal(types.IntentSimpleQA)
		gt.Value(t, result.Confidence).Equal(0.5)
	})
}
