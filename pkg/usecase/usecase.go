package usecase

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/m-mizutani/gollem"
)

// DocumentStore reads case document contents by URI.
type DocumentStore interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// Notifier posts protocol lifecycle notices to the school's channel.
// All methods are best effort.
type Notifier interface {
	NotifyProtocolGenerated(ctx context.Context, channelID string, p *model.Protocol)
	NotifyStepCompleted(ctx context.Context, channelID string, p *model.Protocol, step *model.ProtocolStep)
}

type UseCases struct {
	repo     interfaces.Repository
	llm      gollem.LLMClient
	search   interfaces.PolicySearch
	docs     DocumentStore
	notify   Notifier
	registry *model.SchoolRegistry
}

type Option func(*UseCases)

// WithSearch enables retrieval-augmented policy search for case creation
// and protocol generation.
func WithSearch(s interfaces.PolicySearch) Option {
	return func(uc *UseCases) {
		uc.search = s
	}
}

// WithDocumentStore enables reading attached case documents.
func WithDocumentStore(d DocumentStore) Option {
	return func(uc *UseCases) {
		uc.docs = d
	}
}

// WithNotifier enables protocol lifecycle notifications.
func WithNotifier(n Notifier) Option {
	return func(uc *UseCases) {
		uc.notify = n
	}
}

// WithSchoolRegistry sets the school registry. Without it every turn runs
// with an empty default scope.
func WithSchoolRegistry(r *model.SchoolRegistry) Option {
	return func(uc *UseCases) {
		uc.registry = r
	}
}

func New(repo interfaces.Repository, llm gollem.LLMClient, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:     repo,
		llm:      llm,
		registry: model.NewSchoolRegistry(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
