package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/utils/async"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// TurnInput is one user turn of a chat session. CaseID and UserID are
// optional: an explicit CaseID wins over the session's own case binding
// for the turn, and UserID only identifies the actor in logs.
type TurnInput struct {
	SchoolID  string
	SessionID string
	UserID    string
	Message   string
	HasFiles  bool
	FileURIs  []string
	CaseID    int64
}

const clarificationMsg = "No estoy seguro de qué necesitas. ¿Podrías indicarme si quieres " +
	"analizar un documento, consultar o documentar un caso, redactar un correo o " +
	"agendar una reunión, o hacer una pregunta general?"

const protocolFailureMsg = "Lo siento, no pude generar el protocolo en este momento. " +
	"Puedes intentarlo nuevamente en unos minutos."

const turnDivider = "\n\n---\n\n"

// activationPhrases trigger the background protocol generation flow.
// Kept as plain substrings; the conjugations cover how coordinators
// actually phrase the request.
var activationPhrases = []string{
	"activa el protocolo",
	"activar el protocolo",
	"genera el protocolo",
	"generar el protocolo",
	"genera un protocolo",
	"inicia el protocolo",
	"iniciar el protocolo",
	"aplica el protocolo",
	"aplicar el protocolo",
	"protocolo de actuación",
}

// StreamTurn runs one full conversation turn, delivering typed events
// through emit in generation order. Within a turn, thinking events may
// precede content but never follow it, and the suggestions event is
// always last or absent. The (user message, assistant response) pair is
// appended to history exactly once per turn, whichever path ran.
func (uc *UseCases) StreamTurn(ctx context.Context, in TurnInput, emit func(model.ChatEvent) error) error {
	logger := logging.From(ctx)

	if _, err := uc.registry.Get(in.SchoolID); err != nil {
		return goerr.Wrap(ErrUnknownSchool, "cannot resolve school", goerr.V("school_id", in.SchoolID))
	}

	history, err := uc.repo.History().List(ctx, in.SessionID)
	if err != nil {
		return goerr.Wrap(err, "failed to load history", goerr.V(SessionIDKey, in.SessionID))
	}

	activeCase, err := uc.repo.Case().GetBySession(ctx, in.SessionID)
	if err != nil {
		return goerr.Wrap(err, "failed to load session case", goerr.V(SessionIDKey, in.SessionID))
	}

	if in.CaseID != 0 && (activeCase == nil || activeCase.ID != in.CaseID) {
		activeCase, err = uc.adoptCase(ctx, in.CaseID, in.SessionID)
		if err != nil {
			return err
		}
	}

	history = uc.injectCaseContext(ctx, in.SessionID, activeCase, history)

	summary, err := uc.repo.History().GetSummary(ctx, in.SessionID)
	if err != nil {
		logger.Warn("failed to load session summary", slog.Any("error", err))
		summary = ""
	}

	var caseID int64
	if activeCase != nil {
		caseID = activeCase.ID
	}
	cls := uc.Classify(ctx, ClassifyInput{
		Message:  in.Message,
		HasFiles: in.HasFiles,
		CaseID:   caseID,
		History:  history,
	})
	logger.Info("turn classified",
		slog.String("intent", cls.Intent.String()),
		slog.Float64("confidence", cls.Confidence),
		slog.String("user_id", in.UserID),
	)

	// Below the threshold we ask instead of guessing. The turn is
	// terminal: the message pair is saved, no fast path runs.
	if cls.Confidence < AmbiguityThreshold {
		if err := emit(model.ContentEvent(clarificationMsg)); err != nil {
			return goerr.Wrap(err, "failed to emit clarification")
		}
		return uc.appendTurn(ctx, in, clarificationMsg)
	}

	if err := emit(model.ThinkingEvent("Analizando tu mensaje...")); err != nil {
		return goerr.Wrap(err, "failed to emit status")
	}

	// The expensive generation runs concurrently with the foreground
	// response and is joined after it. Gate violations come back as
	// user-visible text, not errors.
	var protocolTask *async.Task[string]
	if detectProtocolActivation(in.Message) {
		if err := emit(model.ThinkingEvent("Preparando el protocolo de actuación...")); err != nil {
			return goerr.Wrap(err, "failed to emit status")
		}
		protocolTask = async.Run(ctx, func(ctx context.Context) (string, error) {
			return uc.generateProtocolForTurn(ctx, in, activeCase)
		})
	}

	response, err := uc.dispatch(ctx, cls.Intent, dispatchRequest{
		SchoolID:  in.SchoolID,
		SessionID: in.SessionID,
		Message:   in.Message,
		FileURIs:  in.FileURIs,
		Case:      activeCase,
		History:   history,
		Summary:   summary,
	})
	if err != nil {
		return goerr.Wrap(err, "dispatch failed", goerr.V("intent", cls.Intent))
	}

	// Suggestions never block the turn and never fail it.
	suggestTask := async.Run(ctx, func(ctx context.Context) ([]string, error) {
		return uc.suggest(ctx, in.Message, response), nil
	})

	if err := emit(model.ContentEvent(response)); err != nil {
		return goerr.Wrap(err, "failed to emit response")
	}

	full := response
	if protocolTask != nil {
		block, err := protocolTask.Wait(ctx)
		if err != nil {
			logger.Warn("background protocol generation failed", slog.Any("error", err))
			block = protocolFailureMsg
		}
		if err := emit(model.ContentEvent(turnDivider + block)); err != nil {
			return goerr.Wrap(err, "failed to emit protocol block")
		}
		full += turnDivider + block
	}

	if suggestions, err := suggestTask.Wait(ctx); err == nil && len(suggestions) > 0 {
		if err := emit(model.SuggestionsEvent(suggestions)); err != nil {
			return goerr.Wrap(err, "failed to emit suggestions")
		}
	}

	return uc.appendTurn(ctx, in, full)
}

// adoptCase resolves an explicitly referenced case for the turn. An
// unbound case is bound to the session so subsequent turns find it via
// the session lookup; a case already bound elsewhere keeps its binding
// and only serves this turn.
func (uc *UseCases) adoptCase(ctx context.Context, caseID int64, sessionID string) (*model.Case, error) {
	c, err := uc.repo.Case().Get(ctx, caseID)
	if err != nil {
		return nil, goerr.Wrap(ErrCaseNotFound, "referenced case is not available",
			goerr.V(CaseIDKey, caseID))
	}

	if c.SessionID == "" {
		c.SessionID = sessionID
		updated, err := uc.repo.Case().Update(ctx, c)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to bind case to session",
				goerr.V(CaseIDKey, caseID), goerr.V(SessionIDKey, sessionID))
		}
		return updated, nil
	}
	return c, nil
}

// injectCaseContext adds the case-context system message to the session
// history when a case is active and the marker is not present yet. The
// returned slice always includes the injected message so the current
// turn sees it too. Injection failure degrades to an uninjected turn.
func (uc *UseCases) injectCaseContext(ctx context.Context, sessionID string, c *model.Case, history []model.ChatMessage) []model.ChatMessage {
	if c == nil || hasCaseContext(history) {
		return history
	}

	msg := model.ChatMessage{
		Role: types.ChatRoleSystem,
		Content: fmt.Sprintf("%s Caso #%d: %s (tipo: %s, estado: %s)",
			model.CaseContextMarker, c.ID, c.Title, c.CaseType, c.Status.Normalize()),
		CreatedAt: time.Now(),
	}
	if err := uc.repo.History().Append(ctx, sessionID, []model.ChatMessage{msg}); err != nil {
		logging.From(ctx).Warn("failed to inject case context", slog.Any("error", err))
		return history
	}
	return append(history, msg)
}

func hasCaseContext(history []model.ChatMessage) bool {
	for _, m := range history {
		if m.Role == types.ChatRoleSystem && strings.Contains(m.Content, model.CaseContextMarker) {
			return true
		}
	}
	return false
}

func detectProtocolActivation(message string) bool {
	msg := strings.ToLower(message)
	for _, phrase := range activationPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// generateProtocolForTurn runs the gated generation flow and converts
// gate violations into the exact user-facing explanations. Unexpected
// failures propagate and become the inline apology at join time.
func (uc *UseCases) generateProtocolForTurn(ctx context.Context, in TurnInput, c *model.Case) (string, error) {
	if c == nil {
		return "Para generar un protocolo primero necesito que documentemos el caso. " +
			"Cuéntame qué ocurrió y quiénes estuvieron involucrados.", nil
	}

	text, err := uc.GenerateProtocol(ctx, in.SchoolID, c, in.SessionID)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ErrProtocolActive):
		return "Ya existe un protocolo activo para este caso. Puedes consultar su avance " +
			"o completar el paso en curso antes de generar uno nuevo.", nil
	case errors.Is(err, ErrCaseNotReady):
		missing := c.MissingFacts()
		return "Antes de generar el protocolo necesito estos datos del caso: " +
			strings.Join(missing, ", ") + ".", nil
	default:
		return "", err
	}
}

// appendTurn persists the turn's message pair. Called exactly once per
// turn, at the end of whichever path ran.
func (uc *UseCases) appendTurn(ctx context.Context, in TurnInput, response string) error {
	now := time.Now()
	msgs := []model.ChatMessage{
		{Role: types.ChatRoleHuman, Content: in.Message, CreatedAt: now},
		{Role: types.ChatRoleAssistant, Content: response, CreatedAt: now},
	}
	if err := uc.repo.History().Append(ctx, in.SessionID, msgs); err != nil {
		return goerr.Wrap(err, "failed to persist turn", goerr.V(SessionIDKey, in.SessionID))
	}

	uc.refreshSummary(ctx, in.SessionID)
	return nil
}
