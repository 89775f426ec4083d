package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// protocolStepDoc is the Firestore document representation of a step
type protocolStepDoc struct {
	ID            int        `firestore:"ID"`
	Title         string     `firestore:"Title"`
	Description   string     `firestore:"Description"`
	Status        string     `firestore:"Status"`
	EstimatedTime string     `firestore:"EstimatedTime"`
	Deadline      *time.Time `firestore:"Deadline"`
	CompletedAt   *time.Time `firestore:"CompletedAt"`
	Notes         string     `firestore:"Notes"`
}

// protocolDoc is the Firestore document representation of model.Protocol.
// The same document is written under the case key and the session key so
// a protocol survives before its case exists.
type protocolDoc struct {
	Name           string            `firestore:"Name"`
	CaseID         int64             `firestore:"CaseID"`
	SessionID      string            `firestore:"SessionID"`
	Steps          []protocolStepDoc `firestore:"Steps"`
	CurrentStep    int               `firestore:"CurrentStep"`
	IsCompleted    bool              `firestore:"IsCompleted"`
	ExtractedFrom  string            `firestore:"ExtractedFrom"`
	SourceDocument string            `firestore:"SourceDocument"`
	BaseDate       time.Time         `firestore:"BaseDate"`
	CreatedAt      time.Time         `firestore:"CreatedAt"`
	UpdatedAt      time.Time         `firestore:"UpdatedAt"`
}

func toProtocolDoc(p *model.Protocol) *protocolDoc {
	doc := &protocolDoc{
		Name:           p.Name,
		CaseID:         p.CaseID,
		SessionID:      p.SessionID,
		CurrentStep:    p.CurrentStep,
		IsCompleted:    p.IsCompleted,
		ExtractedFrom:  p.ExtractedFrom,
		SourceDocument: p.SourceDocument,
		BaseDate:       p.BaseDate,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	doc.Steps = make([]protocolStepDoc, len(p.Steps))
	for i, s := range p.Steps {
		doc.Steps[i] = protocolStepDoc{
			ID:            s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Status:        s.Status.String(),
			EstimatedTime: s.EstimatedTime,
			Deadline:      s.Deadline,
			CompletedAt:   s.CompletedAt,
			Notes:         s.Notes,
		}
	}
	return doc
}

func fromProtocolDoc(d *protocolDoc) *model.Protocol {
	p := &model.Protocol{
		Name:           d.Name,
		CaseID:         d.CaseID,
		SessionID:      d.SessionID,
		CurrentStep:    d.CurrentStep,
		IsCompleted:    d.IsCompleted,
		ExtractedFrom:  d.ExtractedFrom,
		SourceDocument: d.SourceDocument,
		BaseDate:       d.BaseDate,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	p.Steps = make([]model.ProtocolStep, len(d.Steps))
	for i, s := range d.Steps {
		p.Steps[i] = model.ProtocolStep{
			ID:            s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Status:        types.StepStatus(s.Status).Normalize(),
			EstimatedTime: s.EstimatedTime,
			Deadline:      s.Deadline,
			CompletedAt:   s.CompletedAt,
			Notes:         s.Notes,
		}
	}
	return p
}

type protocolRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newProtocolRepository(client *firestore.Client) *protocolRepository {
	return &protocolRepository{client: client}
}

func (r *protocolRepository) protocolsCollection() string {
	return prefixed(r.collectionPrefix, "protocols")
}

func (r *protocolRepository) sessionProtocolsCollection() string {
	return prefixed(r.collectionPrefix, "session_protocols")
}

func (r *protocolRepository) Put(ctx context.Context, p *model.Protocol) error {
	stored := p.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()
	doc := toProtocolDoc(stored)

	if stored.CaseID != 0 {
		docID := fmt.Sprintf("%d", stored.CaseID)
		if _, err := r.client.Collection(r.protocolsCollection()).Doc(docID).Set(ctx, doc); err != nil {
			return goerr.Wrap(err, "failed to save protocol", goerr.V("caseID", stored.CaseID))
		}
	}

	if stored.SessionID != "" {
		if _, err := r.client.Collection(r.sessionProtocolsCollection()).Doc(stored.SessionID).Set(ctx, doc); err != nil {
			return goerr.Wrap(err, "failed to mirror protocol by session", goerr.V("sessionID", stored.SessionID))
		}
	}

	return nil
}

func (r *protocolRepository) GetByCase(ctx context.Context, caseID int64) (*model.Protocol, error) {
	docID := fmt.Sprintf("%d", caseID)
	docSnap, err := r.client.Collection(r.protocolsCollection()).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get protocol", goerr.V("caseID", caseID))
	}

	var d protocolDoc
	if err := docSnap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal protocol", goerr.V("caseID", caseID))
	}

	return fromProtocolDoc(&d), nil
}

func (r *protocolRepository) GetBySession(ctx context.Context, sessionID string) (*model.Protocol, error) {
	docSnap, err := r.client.Collection(r.sessionProtocolsCollection()).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get protocol by session", goerr.V("sessionID", sessionID))
	}

	var d protocolDoc
	if err := docSnap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal protocol", goerr.V("sessionID", sessionID))
	}

	return fromProtocolDoc(&d), nil
}

func (r *protocolRepository) DeleteByCase(ctx context.Context, caseID int64) error {
	p, err := r.GetByCase(ctx, caseID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	docID := fmt.Sprintf("%d", caseID)
	if _, err := r.client.Collection(r.protocolsCollection()).Doc(docID).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete protocol", goerr.V("caseID", caseID))
	}

	if p.SessionID != "" {
		if _, err := r.client.Collection(r.sessionProtocolsCollection()).Doc(p.SessionID).Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete session protocol mirror", goerr.V("sessionID", p.SessionID))
		}
	}

	return nil
}
