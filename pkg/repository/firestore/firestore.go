package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerr.New("not found")

// Firestore is the durable repository backend
type Firestore struct {
	client   *firestore.Client
	caseRepo *caseRepository
	protocol *protocolRepository
	history  *historyRepository
	policy   *policyRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every collection, used to isolate test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.caseRepo.collectionPrefix = prefix
		f.protocol.collectionPrefix = prefix
		f.history.collectionPrefix = prefix
		f.policy.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	f := &Firestore{
		client:   client,
		caseRepo: newCaseRepository(client),
		protocol: newProtocolRepository(client),
		history:  newHistoryRepository(client),
		policy:   newPolicyRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Case() interfaces.CaseRepository {
	return f.caseRepo
}

func (f *Firestore) Protocol() interfaces.ProtocolRepository {
	return f.protocol
}

func (f *Firestore) History() interfaces.HistoryRepository {
	return f.history
}

func (f *Firestore) Policy() interfaces.PolicyRepository {
	return f.policy
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func prefixed(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
