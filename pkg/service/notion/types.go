package notion

import (
	"context"
	"iter"
	"time"
)

// Service reads policy documents maintained in Notion. Schools keep their
// reglamento interno and protocol pages in a Notion database; the index
// command pulls updated pages through this interface.
type Service interface {
	// QueryUpdatedPages yields pages edited since the given time,
	// already flattened to Markdown
	QueryUpdatedPages(ctx context.Context, dbID string, since time.Time) iter.Seq2[*Page, error]
}

// Page is one policy page flattened for indexing.
type Page struct {
	ID             string
	Title          string
	URL            string
	Markdown       string
	CreatedTime    time.Time
	LastEditedTime time.Time
}
