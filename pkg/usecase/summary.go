package usecase

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"

	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/summary_system.md
var summarySystemPrompt string

// summarizeAfter is the log length at which the stored summary is
// regenerated. Below it the recency window the dispatchers see still
// covers the whole conversation.
const summarizeAfter = 12

// refreshSummary regenerates the session's stored context summary once
// the log outgrows the dispatchers' recency window. Strictly best
// effort: any failure is logged and the previous summary stays.
func (uc *UseCases) refreshSummary(ctx context.Context, sessionID string) {
	logger := logging.From(ctx)

	history, err := uc.repo.History().List(ctx, sessionID)
	if err != nil {
		logger.Warn("failed to load history for summary", slog.Any("error", err))
		return
	}
	if len(history) < summarizeAfter {
		return
	}

	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(summarySystemPrompt),
	)
	if err != nil {
		logger.Warn("failed to create summary session", slog.Any("error", err))
		return
	}

	var b strings.Builder
	b.WriteString("## Conversación completa\n\n")
	for _, msg := range history {
		b.WriteString("- ")
		b.WriteString(msg.Role.String())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(b.String()))
	if err != nil || len(resp.Texts) == 0 {
		logger.Warn("summary generation failed", slog.Any("error", err))
		return
	}

	summary := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if summary == "" {
		return
	}
	if err := uc.repo.History().PutSummary(ctx, sessionID, summary); err != nil {
		logger.Warn("failed to store session summary", slog.Any("error", err))
	}
}
