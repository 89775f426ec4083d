package usecase

import (
	"context"
	"strings"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// dispatchRequest is the contextual payload handed to a fast-path
// dispatcher. Dispatchers are stateless; everything they need rides here.
type dispatchRequest struct {
	SchoolID  string
	SessionID string
	Message   string
	FileURIs  []string
	Case      *model.Case // nil when no case is active
	History   []model.ChatMessage
	Summary   string // stored context summary, "" when none
}

// contextBlock renders the stored summary followed by the most recent
// messages. The summary carries what the recency window dropped.
func (req dispatchRequest) contextBlock(max int) string {
	var b strings.Builder
	if req.Summary != "" {
		b.WriteString("## Resumen de la conversación\n\n")
		b.WriteString(req.Summary)
		b.WriteString("\n\n")
	}
	b.WriteString(historyBlock(req.History, max))
	return b.String()
}

// dispatch routes a classified turn to its fast path. Every path returns
// response text; none of them runs an unconstrained agentic loop.
func (uc *UseCases) dispatch(ctx context.Context, intent types.Intent, req dispatchRequest) (string, error) {
	switch intent {
	case types.IntentDocumentAnalysis:
		return uc.dispatchDocumentAnalysis(ctx, req)
	case types.IntentSimpleQA:
		return uc.dispatchSimpleQA(ctx, req)
	case types.IntentToolRequired:
		return uc.dispatchTool(ctx, req)
	case types.IntentCaseQuery:
		return uc.dispatchCaseQuery(ctx, req)
	case types.IntentCaseCreation:
		return uc.dispatchCaseCreation(ctx, req)
	default:
		return "", goerr.New("unknown intent", goerr.V("intent", intent))
	}
}

// generate runs one plain completion with the given system prompt.
func (uc *UseCases) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "generation failed")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.Wrap(ErrEmptyModelResponse, "generation returned nothing")
	}
	return strings.Join(resp.Texts, "\n"), nil
}

// historyBlock renders the most recent messages for inclusion in a prompt.
func historyBlock(history []model.ChatMessage, max int) string {
	if len(history) > max {
		history = history[len(history)-max:]
	}
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Conversación previa\n\n")
	for _, msg := range history {
		b.WriteString("- ")
		b.WriteString(msg.Role.String())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
