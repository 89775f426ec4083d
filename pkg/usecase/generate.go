package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/service/protocol"
	"github.com/convivia-lab/convivia/pkg/utils/async"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/protocol_system.md
var protocolSystemPrompt string

const (
	// ragBudget caps the characters of policy context merged into the
	// generation prompt, split evenly between school and legal corpora.
	ragBudget = 6000
	ragLimit  = 3

	// maxCaseDocuments bounds how many attached documents are inlined.
	maxCaseDocuments = 3
	maxDocumentChars = 4000
)

// GenerateProtocol runs the full protocol generation flow for a case:
// gather case documents and policy context, invoke generation, extract the
// structured protocol and persist it. Two gates run before the expensive
// call: no protocol may already be active, and the case must carry its
// minimum facts (ErrProtocolActive / ErrCaseNotReady).
func (uc *UseCases) GenerateProtocol(ctx context.Context, schoolID string, c *model.Case, sessionID string) (string, error) {
	if c == nil {
		return "", goerr.Wrap(ErrCaseNotFound, "protocol generation requires an active case",
			goerr.V(SessionIDKey, sessionID))
	}

	existing, err := uc.loadProtocol(ctx, c.ID, sessionID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", goerr.Wrap(ErrProtocolActive, "a protocol is already active",
			goerr.V(CaseIDKey, c.ID),
			goerr.V(SessionIDKey, sessionID))
	}

	if missing := c.MissingFacts(); len(missing) > 0 {
		return "", goerr.Wrap(ErrCaseNotReady, "case is missing required facts",
			goerr.V(CaseIDKey, c.ID),
			goerr.V("missing", missing))
	}

	userPrompt, err := uc.buildGenerationPrompt(ctx, schoolID, c)
	if err != nil {
		return "", err
	}

	session, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(protocolSystemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create generation session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "protocol generation failed", goerr.V(CaseIDKey, c.ID))
	}
	if len(resp.Texts) == 0 {
		return "", goerr.Wrap(ErrEmptyModelResponse, "protocol generation returned nothing")
	}
	generated := strings.Join(resp.Texts, "\n")

	// BaseDate is the case creation time, captured once; every deadline
	// derives from it no matter when extraction runs.
	extracted := protocol.Extract(generated, c.ID, sessionID, c.CreatedAt)
	if extracted == nil {
		extracted = protocol.DetectSingleStep(generated, c.ID, sessionID, c.CreatedAt)
	}
	if extracted == nil {
		// The generation was conversational. Pass it through rather than
		// failing the flow.
		logging.From(ctx).Warn("generation produced no extractable protocol",
			slog.Int64("caseID", c.ID))
		return generated, nil
	}
	extracted.SourceDocument = firstOrEmpty(c.DocumentURIs)

	if err := uc.repo.Protocol().Put(ctx, extracted); err != nil {
		return "", goerr.Wrap(err, "failed to persist extracted protocol",
			goerr.V(CaseIDKey, c.ID))
	}

	if uc.notify != nil {
		if entry, err := uc.registry.Get(schoolID); err == nil {
			async.Dispatch(ctx, func(ctx context.Context) error {
				uc.notify.NotifyProtocolGenerated(ctx, entry.SlackChannelID, extracted)
				return nil
			})
		}
	}

	return protocol.FormatProtocolResponse(extracted)
}

func (uc *UseCases) buildGenerationPrompt(ctx context.Context, schoolID string, c *model.Case) (string, error) {
	var b strings.Builder

	b.WriteString("## Caso\n\n")
	fmt.Fprintf(&b, "**Título:** %s\n", c.Title)
	fmt.Fprintf(&b, "**Tipo:** %s\n", c.CaseType)
	fmt.Fprintf(&b, "**Descripción:** %s\n", c.Description)
	if c.IncidentDate != "" {
		fmt.Fprintf(&b, "**Fecha del incidente:** %s\n", c.IncidentDate)
	}
	b.WriteString("\n**Involucrados:**\n")
	for _, p := range c.Parties {
		fmt.Fprintf(&b, "- %s (%d años, %s) — %s\n", p.Name, p.Age, p.Course, p.Role)
	}

	if uc.docs != nil && len(c.DocumentURIs) > 0 {
		b.WriteString("\n## Documentos del caso\n\n")
		for i, uri := range c.DocumentURIs {
			if i >= maxCaseDocuments {
				break
			}
			data, err := uc.docs.Get(ctx, uri)
			if err != nil {
				// A missing document degrades the prompt, not the flow.
				logging.From(ctx).Warn("failed to read case document",
					slog.String("uri", uri), slog.Any("error", err))
				continue
			}
			content := string(data)
			if len(content) > maxDocumentChars {
				content = content[:maxDocumentChars]
			}
			fmt.Fprintf(&b, "### Documento %d\n%s\n\n", i+1, content)
		}
	}

	if uc.search != nil {
		query := c.CaseType + " " + c.Title + " " + c.Description
		policyContext, err := uc.search.QueryDual(ctx, schoolID, query, ragLimit, ragBudget)
		if err != nil {
			// Retrieval is enrichment; generation proceeds without it.
			logging.From(ctx).Warn("policy search failed",
				slog.String("schoolID", schoolID), slog.Any("error", err))
		} else if policyContext != "" {
			b.WriteString("\n## Normativa aplicable\n\n")
			b.WriteString(policyContext)
		}
	}

	b.WriteString("\nGenera el protocolo de actuación para este caso.\n")
	return b.String(), nil
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
