package usecase

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed prompt/simple_qa_system.md
var simpleQASystemPrompt string

func (uc *UseCases) dispatchSimpleQA(ctx context.Context, req dispatchRequest) (string, error) {
	var b strings.Builder

	if block := req.contextBlock(6); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("## Pregunta\n\n")
	b.WriteString(req.Message)

	return uc.generate(ctx, simpleQASystemPrompt, b.String())
}
