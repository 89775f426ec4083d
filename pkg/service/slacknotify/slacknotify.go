// Package slacknotify posts best-effort notices to a school's convivencia
// channel when a protocol is generated or a step is completed. Failures
// are logged and swallowed; Slack is never on the critical path of a turn.
package slacknotify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// Service posts protocol lifecycle notices.
type Service struct {
	api *slack.Client
}

// New creates a Slack notifier with the provided bot token.
func New(token string) (*Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	return &Service{api: slack.New(token)}, nil
}

// NotifyProtocolGenerated announces a freshly generated protocol.
func (s *Service) NotifyProtocolGenerated(ctx context.Context, channelID string, p *model.Protocol) {
	if s == nil || channelID == "" {
		return
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			"Protocolo activado", false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s*\nCaso #%d · %d pasos", p.Name, p.CaseID, len(p.Steps)), false, false),
			nil, nil),
	}

	if next := firstActionable(p); next != nil {
		line := fmt.Sprintf("Próximo paso: %s", next.Title)
		if next.Deadline != nil {
			line += fmt.Sprintf(" (plazo %s)", next.Deadline.Format(time.DateOnly))
		}
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, line, false, false)))
	}

	s.post(ctx, channelID, blocks)
}

// NotifyStepCompleted announces a completed protocol step.
func (s *Service) NotifyStepCompleted(ctx context.Context, channelID string, p *model.Protocol, step *model.ProtocolStep) {
	if s == nil || channelID == "" {
		return
	}

	progress := p.Progress()
	text := fmt.Sprintf("Paso completado en *%s*: %s (%d/%d)",
		p.Name, step.Title, progress.Completed, progress.Total)
	if p.IsCompleted {
		text += "\nProtocolo finalizado."
	}

	s.post(ctx, channelID, []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	})
}

func (s *Service) post(ctx context.Context, channelID string, blocks []slack.Block) {
	_, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		logging.From(ctx).Warn("failed to post Slack notification",
			slog.String("channelID", channelID),
			slog.Any("error", err))
	}
}

func firstActionable(p *model.Protocol) *model.ProtocolStep {
	for i := range p.Steps {
		switch p.Steps[i].Status {
		case types.StepStatusInProgress, types.StepStatusPending:
			return &p.Steps[i]
		}
	}
	return nil
}
