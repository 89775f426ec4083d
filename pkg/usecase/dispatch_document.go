package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convivia-lab/convivia/pkg/utils/logging"
)

//go:embed prompt/document_analysis_system.md
var documentAnalysisSystemPrompt string

const noReadableDocumentsMsg = "No pude leer los documentos adjuntos. " +
	"Verifica que los archivos se subieron correctamente y vuelve a intentarlo, " +
	"o pega el contenido relevante directamente en el chat."

func (uc *UseCases) dispatchDocumentAnalysis(ctx context.Context, req dispatchRequest) (string, error) {
	var docs []string
	if uc.docs != nil {
		for i, uri := range req.FileURIs {
			if i >= maxCaseDocuments {
				break
			}
			data, err := uc.docs.Get(ctx, uri)
			if err != nil {
				logging.From(ctx).Warn("failed to read attached document",
					slog.String("uri", uri), slog.Any("error", err))
				continue
			}
			content := string(data)
			if len(content) > maxDocumentChars {
				content = content[:maxDocumentChars]
			}
			docs = append(docs, content)
		}
	}

	if len(docs) == 0 {
		return noReadableDocumentsMsg, nil
	}

	var b strings.Builder
	b.WriteString("## Solicitud\n\n")
	b.WriteString(req.Message)
	b.WriteString("\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "## Documento %d\n\n%s\n\n", i+1, doc)
	}
	if req.Case != nil {
		fmt.Fprintf(&b, "## Caso activo\n\nCaso #%d: %s (%s)\n", req.Case.ID, req.Case.Title, req.Case.CaseType)
	}

	return uc.generate(ctx, documentAnalysisSystemPrompt, b.String())
}
