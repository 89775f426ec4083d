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

// chatMessageDoc is the Firestore document representation of a message.
// Seq preserves append order within one Append batch, since CreatedAt
// values inside a batch may collide.
type chatMessageDoc struct {
	Role      string    `firestore:"Role"`
	Content   string    `firestore:"Content"`
	CreatedAt time.Time `firestore:"CreatedAt"`
	Seq       int64     `firestore:"Seq"`
}

type historyRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newHistoryRepository(client *firestore.Client) *historyRepository {
	return &historyRepository{client: client}
}

func (r *historyRepository) sessionsCollection() string {
	return prefixed(r.collectionPrefix, "sessions")
}

func (r *historyRepository) messagesCollection(sessionID string) *firestore.CollectionRef {
	return r.client.Collection(r.sessionsCollection()).Doc(sessionID).Collection("messages")
}

func (r *historyRepository) List(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	iter := r.messagesCollection(sessionID).
		OrderBy("Seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var msgs []model.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("sessionID", sessionID))
		}

		var d chatMessageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("sessionID", sessionID))
		}

		msgs = append(msgs, model.ChatMessage{
			Role:      types.ChatRole(d.Role),
			Content:   d.Content,
			CreatedAt: d.CreatedAt,
		})
	}

	return msgs, nil
}

func (r *historyRepository) nextSeq(ctx context.Context, sessionID string) (int64, error) {
	iter := r.messagesCollection(sessionID).
		OrderBy("Seq", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return 1, nil
	}
	if err != nil {
		return 0, goerr.Wrap(err, "failed to query last message", goerr.V("sessionID", sessionID))
	}

	var d chatMessageDoc
	if err := doc.DataTo(&d); err != nil {
		return 0, goerr.Wrap(err, "failed to unmarshal last message", goerr.V("sessionID", sessionID))
	}

	return d.Seq + 1, nil
}

func (r *historyRepository) Append(ctx context.Context, sessionID string, msgs []model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	seq, err := r.nextSeq(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, msg := range msgs {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		doc := chatMessageDoc{
			Role:      msg.Role.String(),
			Content:   msg.Content,
			CreatedAt: createdAt,
			Seq:       seq,
		}
		if _, _, err := r.messagesCollection(sessionID).Add(ctx, doc); err != nil {
			return goerr.Wrap(err, "failed to append message", goerr.V("sessionID", sessionID))
		}
		seq++
	}

	return nil
}

func (r *historyRepository) GetSummary(ctx context.Context, sessionID string) (string, error) {
	docSnap, err := r.client.Collection(r.sessionsCollection()).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to get session", goerr.V("sessionID", sessionID))
	}

	summary, err := docSnap.DataAt("Summary")
	if err != nil {
		return "", nil
	}

	s, _ := summary.(string)
	return s, nil
}

func (r *historyRepository) PutSummary(ctx context.Context, sessionID string, summary string) error {
	docRef := r.client.Collection(r.sessionsCollection()).Doc(sessionID)
	if _, err := docRef.Set(ctx, map[string]interface{}{
		"Summary":   summary,
		"UpdatedAt": time.Now().UTC(),
	}, firestore.MergeAll); err != nil {
		return goerr.Wrap(err, "failed to save session summary", goerr.V("sessionID", sessionID))
	}

	return nil
}
