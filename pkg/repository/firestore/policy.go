package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// policyDoc is the Firestore document representation of model.PolicyDocument.
// Embedding is stored as firestore.Vector32 so that FindNearest vector search works.
type policyDoc struct {
	ID        model.PolicyDocumentID `firestore:"ID"`
	Scope     string                 `firestore:"Scope"`
	Title     string                 `firestore:"Title"`
	Content   string                 `firestore:"Content"`
	SourceURL string                 `firestore:"SourceURL"`
	Embedding firestore.Vector32     `firestore:"Embedding,omitempty"`
	SourcedAt time.Time              `firestore:"SourcedAt"`
	CreatedAt time.Time              `firestore:"CreatedAt"`
	UpdatedAt time.Time              `firestore:"UpdatedAt"`
}

func toPolicyDoc(d *model.PolicyDocument) *policyDoc {
	doc := &policyDoc{
		ID:        d.ID,
		Scope:     d.Scope.String(),
		Title:     d.Title,
		Content:   d.Content,
		SourceURL: d.SourceURL,
		SourcedAt: d.SourcedAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(d.Embedding)
	}
	return doc
}

func fromPolicyDoc(d *policyDoc) *model.PolicyDocument {
	doc := &model.PolicyDocument{
		ID:        d.ID,
		Scope:     types.PolicyScope(d.Scope),
		Title:     d.Title,
		Content:   d.Content,
		SourceURL: d.SourceURL,
		SourcedAt: d.SourcedAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		doc.Embedding = []float32(d.Embedding)
	}
	return doc
}

func snapToPolicyDocument(doc *firestore.DocumentSnapshot) (*model.PolicyDocument, error) {
	var d policyDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromPolicyDoc(&d), nil
}

type policyRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newPolicyRepository(client *firestore.Client) *policyRepository {
	return &policyRepository{client: client}
}

// collection resolves the corpus partition: school policies live under
// their school document, the legal corpus is a shared top-level collection.
func (r *policyRepository) collection(schoolID string, scope types.PolicyScope) *firestore.CollectionRef {
	if scope == types.PolicyScopeLegal {
		return r.client.Collection(prefixed(r.collectionPrefix, "legal_policies"))
	}
	return r.client.Collection(prefixed(r.collectionPrefix, "schools")).
		Doc(schoolID).
		Collection("policies")
}

func (r *policyRepository) Put(ctx context.Context, schoolID string, doc *model.PolicyDocument) (*model.PolicyDocument, error) {
	now := time.Now().UTC()
	stored := *doc
	if stored.ID == "" {
		stored.ID = model.NewPolicyDocumentID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	docRef := r.collection(schoolID, stored.Scope).Doc(string(stored.ID))
	if _, err := docRef.Set(ctx, toPolicyDoc(&stored)); err != nil {
		return nil, goerr.Wrap(err, "failed to save policy document", goerr.V("id", stored.ID))
	}

	return &stored, nil
}

func (r *policyRepository) Get(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) (*model.PolicyDocument, error) {
	docSnap, err := r.collection(schoolID, scope).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "policy document not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get policy document", goerr.V("id", id))
	}

	doc, err := snapToPolicyDocument(docSnap)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal policy document", goerr.V("id", id))
	}

	return doc, nil
}

func (r *policyRepository) ListByScope(ctx context.Context, schoolID string, scope types.PolicyScope) ([]*model.PolicyDocument, error) {
	iter := r.collection(schoolID, scope).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var docs []*model.PolicyDocument
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate policy documents")
		}

		doc, err := snapToPolicyDocument(docSnap)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal policy document")
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (r *policyRepository) FindByEmbedding(ctx context.Context, schoolID string, scope types.PolicyScope, embedding []float32, limit int) ([]*model.PolicyDocument, error) {
	vq := r.collection(schoolID, scope).
		FindNearest("Embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	docs := make([]*model.PolicyDocument, 0, limit)
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		doc, err := snapToPolicyDocument(docSnap)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal policy document from vector search")
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (r *policyRepository) Delete(ctx context.Context, schoolID string, scope types.PolicyScope, id model.PolicyDocumentID) error {
	docRef := r.collection(schoolID, scope).Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "policy document not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get policy document", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete policy document", goerr.V("id", id))
	}

	return nil
}
