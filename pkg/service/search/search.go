// Package search retrieves policy fragments relevant to a conversation
// turn, combining the school's own policy corpus with the shared legal
// corpus for retrieval-augmented generation.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

type service struct {
	llm  gollem.LLMClient
	repo interfaces.PolicyRepository
}

// New creates a policy search service backed by the LLM's embedding model
// and the policy repository's vector index.
func New(llm gollem.LLMClient, repo interfaces.PolicyRepository) (interfaces.PolicySearch, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	if repo == nil {
		return nil, goerr.New("policy repository is required")
	}
	return &service{llm: llm, repo: repo}, nil
}

func (s *service) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}
	return result, nil
}

func (s *service) Query(ctx context.Context, schoolID string, scope types.PolicyScope, query string, limit int) ([]*model.PolicyDocument, error) {
	embedding, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, err := s.repo.FindByEmbedding(ctx, schoolID, scope, embedding, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search policy corpus",
			goerr.V("schoolID", schoolID),
			goerr.V("scope", scope))
	}
	return docs, nil
}

// QueryDual runs both corpora against one query embedding and renders the
// hits into prompt text. The budget is split evenly between corpora so
// neither can crowd out the other; unused half-budget is not reassigned.
func (s *service) QueryDual(ctx context.Context, schoolID string, query string, limit int, budget int) (string, error) {
	embedding, err := s.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	schoolDocs, err := s.repo.FindByEmbedding(ctx, schoolID, types.PolicyScopeSchool, embedding, limit)
	if err != nil {
		return "", goerr.Wrap(err, "failed to search school corpus", goerr.V("schoolID", schoolID))
	}

	legalDocs, err := s.repo.FindByEmbedding(ctx, schoolID, types.PolicyScopeLegal, embedding, limit)
	if err != nil {
		return "", goerr.Wrap(err, "failed to search legal corpus")
	}

	var b strings.Builder
	half := budget / 2

	if section := renderCorpus("Normativa interna del colegio", schoolDocs, half); section != "" {
		b.WriteString(section)
	}
	if section := renderCorpus("Normativa legal y regulatoria", legalDocs, half); section != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(section)
	}

	return b.String(), nil
}

func renderCorpus(heading string, docs []*model.PolicyDocument, budget int) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", heading)

	added := 0
	for _, doc := range docs {
		fragment := fmt.Sprintf("### %s\n%s\n\n", doc.Title, doc.Content)
		if b.Len()+len(fragment) > budget {
			break
		}
		b.WriteString(fragment)
		added++
	}
	if added == 0 {
		return ""
	}

	return b.String()
}
